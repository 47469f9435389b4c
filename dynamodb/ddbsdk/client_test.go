package ddbsdk

import (
	"context"
	"testing"

	"github.com/acksell/ddbdecl/dynamodb/idgen"
	"github.com/acksell/ddbdecl/dynamodb/schema"
)

// account is a shared test entity with an auto-generated key and an index.
type account struct {
	ID      string   `dynamodbav:"id" ddb:"key"`
	Org     string   `dynamodbav:"org" ddb:"index=byOrg"`
	Email   string   `dynamodbav:"email" ddb:"index=byOrg,range"`
	Name    string   `dynamodbav:"name"`
	Logins  int      `dynamodbav:"logins"`
	Tags    []string `dynamodbav:"tags,stringset,omitempty"`
	Notes   string   `dynamodbav:"notes,omitempty"`
	Expires int64    `dynamodbav:"expires,omitempty"`
}

// message is a shared test entity with a composite key.
type message struct {
	Thread string `dynamodbav:"thread" ddb:"key,noautogen"`
	Seq    int    `dynamodbav:"seq" ddb:"key,range"`
	Body   string `dynamodbav:"body"`
}

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	if _, err := r.Register(account{}, schema.TableName("accounts"), schema.TimeToLive("expires")); err != nil {
		t.Fatalf("register account: %v", err)
	}
	if _, err := r.Register(message{}, schema.TableName("messages"), schema.PayPerRequest()); err != nil {
		t.Fatalf("register message: %v", err)
	}
	return r
}

// newTestClient returns a client on an emulated DynamoDB with the test tables created.
// Generated keys are taken from ids before falling back to ULIDs.
func newTestClient(t *testing.T, ids ...string) *Client {
	t.Helper()
	c, err := NewMock(context.Background(), testRegistry(t),
		WithIDGenerator(idgen.NewSequence(idgen.ULID{}, ids...)))
	if err != nil {
		t.Fatalf("NewMock failed: %v", err)
	}
	return c
}

func accounts(t *testing.T, c *Client) *Table[account] {
	t.Helper()
	tbl, err := TableOf[account](c)
	if err != nil {
		t.Fatalf("TableOf failed: %v", err)
	}
	return tbl
}

func messages(t *testing.T, c *Client) *Table[message] {
	t.Helper()
	tbl, err := TableOf[message](c)
	if err != nil {
		t.Fatalf("TableOf failed: %v", err)
	}
	return tbl
}
