package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/dgo/v230"
	"github.com/dgraph-io/dgo/v230/protos/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/intentflow/intentflow/internal/models"
)

// DgraphEntityGraph records extracted entities and their co-occurrence edges
// in Dgraph, allowing cross-session queries like "which services were deployed
// with this environment". The graph is an optional tier; the pipeline works
// without it.
type DgraphEntityGraph struct {
	client *dgo.Dgraph
	conn   *grpc.ClientConn
}

// EntityMention is one recorded occurrence of an entity in a session.
type EntityMention struct {
	Value     string            `json:"value"`
	Type      models.EntityType `json:"type"`
	SessionID string            `json:"session_id"`
	Count     int               `json:"count"`
}

// NewDgraphEntityGraph connects to a Dgraph alpha and installs the schema.
func NewDgraphEntityGraph(alphaURL string) (*DgraphEntityGraph, error) {
	conn, err := grpc.Dial(alphaURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Dgraph: %w", err)
	}

	client := dgo.NewDgraphClient(api.NewDgraphClient(conn))

	graph := &DgraphEntityGraph{client: client, conn: conn}
	if err := graph.initSchema(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return graph, nil
}

// initSchema sets up the mention and co-occurrence schema.
func (g *DgraphEntityGraph) initSchema(ctx context.Context) error {
	schema := `
		type Mention {
			mention.key: string
			mention.value: string
			mention.type: string
			mention.session: string
			mention.count: int
			mention.updated: datetime
			cooccurs: [uid]
		}

		mention.key: string @index(exact) @upsert .
		mention.value: string @index(term) .
		mention.type: string @index(exact) .
		mention.session: string @index(exact) .
		mention.count: int .
		mention.updated: datetime .
		cooccurs: [uid] @reverse .
	`

	op := &api.Operation{Schema: schema}
	return g.client.Alter(ctx, op)
}

// RecordEntities upserts one mention node per entity of a turn and links all
// pairwise co-occurrences.
func (g *DgraphEntityGraph) RecordEntities(ctx context.Context, sessionID string, entities []models.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	uids := make([]string, 0, len(entities))
	for _, e := range entities {
		uid, err := g.upsertMention(ctx, sessionID, e)
		if err != nil {
			return err
		}
		uids = append(uids, uid)
	}

	for i := 0; i < len(uids); i++ {
		for j := i + 1; j < len(uids); j++ {
			if err := g.link(ctx, uids[i], uids[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// upsertMention inserts or bumps the count of one mention node.
func (g *DgraphEntityGraph) upsertMention(ctx context.Context, sessionID string, e models.Entity) (string, error) {
	key := fmt.Sprintf("%s|%s|%s", sessionID, e.Type, e.NormalizedOrValue())

	uid, count, err := g.findMention(ctx, key)
	if err != nil {
		return "", err
	}

	node := map[string]interface{}{
		"mention.key":     key,
		"mention.value":   e.NormalizedOrValue(),
		"mention.type":    string(e.Type),
		"mention.session": sessionID,
		"mention.count":   count + 1,
		"mention.updated": time.Now().Format(time.RFC3339),
		"dgraph.type":     "Mention",
	}
	if uid != "" {
		node["uid"] = uid
	} else {
		node["uid"] = "_:mention"
	}

	payload, err := json.Marshal(node)
	if err != nil {
		return "", fmt.Errorf("failed to marshal mention: %w", err)
	}

	txn := g.client.NewTxn()
	defer txn.Discard(ctx)

	resp, err := txn.Mutate(ctx, &api.Mutation{CommitNow: true, SetJson: payload})
	if err != nil {
		return "", fmt.Errorf("failed to upsert mention: %w", err)
	}

	if uid != "" {
		return uid, nil
	}
	return resp.Uids["mention"], nil
}

// findMention returns the UID and count of a mention node, or empty when the
// key is new.
func (g *DgraphEntityGraph) findMention(ctx context.Context, key string) (string, int, error) {
	q := fmt.Sprintf(`{
		mention(func: eq(mention.key, %q)) {
			uid
			mention.count
		}
	}`, key)

	txn := g.client.NewReadOnlyTxn()
	defer txn.Discard(ctx)

	resp, err := txn.Query(ctx, q)
	if err != nil {
		return "", 0, fmt.Errorf("mention lookup failed: %w", err)
	}

	var result struct {
		Mention []struct {
			UID   string `json:"uid"`
			Count int    `json:"mention.count"`
		} `json:"mention"`
	}
	if err := json.Unmarshal(resp.Json, &result); err != nil {
		return "", 0, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(result.Mention) == 0 {
		return "", 0, nil
	}
	return result.Mention[0].UID, result.Mention[0].Count, nil
}

// link adds a bidirectional co-occurrence edge between two mention nodes.
func (g *DgraphEntityGraph) link(ctx context.Context, a, b string) error {
	payload := []byte(fmt.Sprintf(`[
		{"uid": %q, "cooccurs": [{"uid": %q}]},
		{"uid": %q, "cooccurs": [{"uid": %q}]}
	]`, a, b, b, a))

	txn := g.client.NewTxn()
	defer txn.Discard(ctx)

	_, err := txn.Mutate(ctx, &api.Mutation{CommitNow: true, SetJson: payload})
	if err != nil {
		return fmt.Errorf("failed to link mentions: %w", err)
	}
	return nil
}

// CoOccurring returns mentions that co-occurred with the given entity value,
// across all sessions.
func (g *DgraphEntityGraph) CoOccurring(ctx context.Context, value string) ([]EntityMention, error) {
	q := fmt.Sprintf(`{
		mentions(func: anyofterms(mention.value, %q)) {
			cooccurs {
				mention.value
				mention.type
				mention.session
				mention.count
			}
		}
	}`, value)

	txn := g.client.NewReadOnlyTxn()
	defer txn.Discard(ctx)

	resp, err := txn.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("co-occurrence query failed: %w", err)
	}

	var result struct {
		Mentions []struct {
			Cooccurs []struct {
				Value   string `json:"mention.value"`
				Type    string `json:"mention.type"`
				Session string `json:"mention.session"`
				Count   int    `json:"mention.count"`
			} `json:"cooccurs"`
		} `json:"mentions"`
	}
	if err := json.Unmarshal(resp.Json, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var out []EntityMention
	for _, m := range result.Mentions {
		for _, c := range m.Cooccurs {
			out = append(out, EntityMention{
				Value:     c.Value,
				Type:      models.EntityType(c.Type),
				SessionID: c.Session,
				Count:     c.Count,
			})
		}
	}
	return out, nil
}

// Close closes the Dgraph connection.
func (g *DgraphEntityGraph) Close() error {
	return g.conn.Close()
}
