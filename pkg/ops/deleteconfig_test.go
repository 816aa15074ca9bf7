package ops

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skolbel/netopeer2/pkg/datastore"
	"github.com/skolbel/netopeer2/pkg/netconf"
	"github.com/skolbel/netopeer2/pkg/schema"
	"github.com/skolbel/netopeer2/pkg/session"
)

// fakeConn scripts per-call outcomes and records every call made against
// the datastore contract.
type fakeConn struct {
	switchErr  error
	refreshErr error
	deleteErr  map[string]error
	commitErr  error

	switches  []datastore.Store
	refreshes int
	deletes   []string
	commits   int
	discards  int
}

func (c *fakeConn) SwitchStore(_ context.Context, store datastore.Store) error {
	if c.switchErr != nil {
		return c.switchErr
	}
	c.switches = append(c.switches, store)
	return nil
}

func (c *fakeConn) Refresh(context.Context) error {
	if c.refreshErr != nil {
		return c.refreshErr
	}
	c.refreshes++
	return nil
}

func (c *fakeConn) DeleteModule(_ context.Context, module string) error {
	if err := c.deleteErr[module]; err != nil {
		return err
	}
	c.deletes = append(c.deletes, module)
	return nil
}

func (c *fakeConn) Commit(context.Context) error {
	if c.commitErr != nil {
		return c.commitErr
	}
	c.commits++
	return nil
}

func (c *fakeConn) DiscardChanges(context.Context) { c.discards++ }

func (c *fakeConn) mutated() bool {
	return len(c.switches) > 0 || c.refreshes > 0 || len(c.deletes) > 0 || c.commits > 0 || c.discards > 0
}

// fakeURL records capability calls and scripts their outcomes.
type fakeURL struct {
	fetchErr  error
	reinitErr error
	fetches   []string
	reinits   []string
}

func (f *fakeURL) FetchConfig(_ context.Context, rawurl string) (*netconf.Node, error) {
	f.fetches = append(f.fetches, rawurl)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return &netconf.Node{Name: "config"}, nil
}

func (f *fakeURL) Reinitialize(_ context.Context, rawurl string) error {
	f.reinits = append(f.reinits, rawurl)
	return f.reinitErr
}

// denyAll fails every permission check.
type denyAll struct{}

func (denyAll) CheckExec(context.Context, *session.Session, string) error {
	return errors.New("execute not permitted")
}

func testRegistry() *schema.Registry {
	return schema.NewRegistry(
		schema.Module{Name: "ietf-interfaces", Nodes: []schema.NodeDescriptor{
			{Name: "interfaces", Kind: schema.KindContainer},
			{Name: "interfaces-state", Kind: schema.KindContainer, ReadOnly: true},
		}},
		schema.Module{Name: "ietf-netconf-monitoring", Nodes: []schema.NodeDescriptor{
			{Name: "netconf-state", Kind: schema.KindContainer, ReadOnly: true},
		}},
		schema.Module{Name: "ietf-system", Nodes: []schema.NodeDescriptor{
			{Name: "system", Kind: schema.KindContainer},
			{Name: "system-restart", Kind: schema.KindRPC},
		}},
		schema.Module{Name: "example-acl", Nodes: []schema.NodeDescriptor{
			{Name: "acl-entries", Kind: schema.KindList},
		}},
	)
}

// writableModules is the registry-order list of modules eraseAll must visit.
var writableModules = []string{"ietf-interfaces", "ietf-system", "example-acl"}

func rpcTarget(t *testing.T, inner string) *netconf.Node {
	t.Helper()
	doc := fmt.Sprintf(`<delete-config><target>%s</target></delete-config>`, inner)
	node, err := netconf.ParseString(doc)
	require.NoError(t, err)
	return node
}

func newSession(t *testing.T, conn datastore.Connection, bound datastore.Store) *session.Session {
	t.Helper()
	sess, err := session.New(conn, session.WithBoundStore(bound))
	require.NoError(t, err)
	return sess
}

// exactlyOneResult asserts the reply is a single terminal result: success
// xor a non-empty error list.
func exactlyOneResult(t *testing.T, reply *netconf.Reply) {
	t.Helper()
	require.NotNil(t, reply)
	if reply.IsOK() {
		assert.Empty(t, reply.Errors())
	} else {
		assert.NotEmpty(t, reply.Errors())
	}
}

func TestDeleteConfigStartupSuccess(t *testing.T) {
	// Scenario A: switch from running to startup, erase, commit.
	conn := &fakeConn{}
	sess := newSession(t, conn, datastore.Running)
	h := &DeleteConfig{Registry: testRegistry()}

	reply := h.Handle(context.Background(), rpcTarget(t, "<startup/>"), sess)
	exactlyOneResult(t, reply)

	require.True(t, reply.IsOK(), "errors: %+v", reply.Errors())
	assert.Equal(t, []datastore.Store{datastore.Startup}, conn.switches)
	assert.Equal(t, datastore.Startup, sess.BoundStore())
	assert.Equal(t, 1, conn.refreshes)
	assert.Equal(t, writableModules, conn.deletes)
	assert.Equal(t, 1, conn.commits)
	assert.Zero(t, conn.discards)
}

func TestDeleteConfigAlreadyBound(t *testing.T) {
	conn := &fakeConn{}
	sess := newSession(t, conn, datastore.Startup)
	h := &DeleteConfig{Registry: testRegistry()}

	reply := h.Handle(context.Background(), rpcTarget(t, "<startup/>"), sess)

	require.True(t, reply.IsOK())
	assert.Empty(t, conn.switches, "no switch when already bound")
	assert.Equal(t, 1, conn.refreshes, "refresh happens regardless of switch")
}

func TestDeleteConfigCandidateAndRunningTargets(t *testing.T) {
	for _, tc := range []struct {
		inner string
		store datastore.Store
	}{
		{"<candidate/>", datastore.Candidate},
		{"<running/>", datastore.Running},
	} {
		conn := &fakeConn{}
		sess := newSession(t, conn, datastore.Startup)
		h := &DeleteConfig{Registry: testRegistry()}

		reply := h.Handle(context.Background(), rpcTarget(t, tc.inner), sess)
		require.True(t, reply.IsOK(), "target %s: %+v", tc.inner, reply.Errors())
		assert.Equal(t, []datastore.Store{tc.store}, conn.switches)
		assert.Equal(t, tc.store, sess.BoundStore())
	}
}

func TestDeleteConfigSkipsStateOnlyModules(t *testing.T) {
	// P3: modules without writable top-level nodes never reach the engine.
	conn := &fakeConn{}
	sess := newSession(t, conn, datastore.Startup)
	h := &DeleteConfig{Registry: testRegistry()}

	reply := h.Handle(context.Background(), rpcTarget(t, "<startup/>"), sess)

	require.True(t, reply.IsOK())
	assert.NotContains(t, conn.deletes, "ietf-netconf-monitoring")
	assert.Equal(t, writableModules, conn.deletes, "registry order, each visited exactly once")
}

func TestDeleteConfigDeleteFailureRollsBack(t *testing.T) {
	// Scenario B: the third qualifying module's delete fails.
	conn := &fakeConn{deleteErr: map[string]error{"example-acl": errors.New("engine unavailable")}}
	sess := newSession(t, conn, datastore.Startup)
	h := &DeleteConfig{Registry: testRegistry()}

	reply := h.Handle(context.Background(), rpcTarget(t, "<startup/>"), sess)
	exactlyOneResult(t, reply)

	require.False(t, reply.IsOK())
	errs := reply.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, netconf.TagOperationFailed, errs[0].Tag)
	assert.Contains(t, errs[0].Message, "example-acl")
	assert.Equal(t, 1, conn.discards, "discard exactly once")
	assert.Zero(t, conn.commits, "commit never attempted")
	assert.Equal(t, []string{"ietf-interfaces", "ietf-system"}, conn.deletes, "stops at failing module")
}

func TestDeleteConfigCommitFailure(t *testing.T) {
	conn := &fakeConn{commitErr: errors.New("disk full")}
	sess := newSession(t, conn, datastore.Startup)
	h := &DeleteConfig{Registry: testRegistry()}

	reply := h.Handle(context.Background(), rpcTarget(t, "<startup/>"), sess)

	require.False(t, reply.IsOK())
	assert.Contains(t, reply.Errors()[0].Message, "commit failed")
	assert.Equal(t, 1, conn.discards)
}

func TestDeleteConfigSwitchFailure(t *testing.T) {
	conn := &fakeConn{switchErr: errors.New("store locked")}
	sess := newSession(t, conn, datastore.Running)
	h := &DeleteConfig{Registry: testRegistry()}

	reply := h.Handle(context.Background(), rpcTarget(t, "<startup/>"), sess)

	require.False(t, reply.IsOK())
	assert.Equal(t, datastore.Running, sess.BoundStore(), "binding unchanged on switch failure")
	assert.Empty(t, conn.deletes, "no deletions attempted")
	assert.Zero(t, conn.commits)
}

func TestDeleteConfigRefreshFailure(t *testing.T) {
	conn := &fakeConn{refreshErr: errors.New("view out of sync")}
	sess := newSession(t, conn, datastore.Startup)
	h := &DeleteConfig{Registry: testRegistry()}

	reply := h.Handle(context.Background(), rpcTarget(t, "<startup/>"), sess)

	require.False(t, reply.IsOK())
	assert.Empty(t, conn.deletes)
	assert.Zero(t, conn.commits)
}

func TestDeleteConfigPermissionDenied(t *testing.T) {
	// Scenario E: no target resolution, no store calls at all.
	conn := &fakeConn{}
	sess := newSession(t, conn, datastore.Running)
	url := &fakeURL{}
	h := &DeleteConfig{Registry: testRegistry(), Checker: denyAll{}, URL: url}

	reply := h.Handle(context.Background(), rpcTarget(t, "<startup/>"), sess)
	exactlyOneResult(t, reply)

	require.False(t, reply.IsOK())
	assert.Equal(t, netconf.TagAccessDenied, reply.Errors()[0].Tag)
	assert.False(t, conn.mutated(), "no side effects after denial")
	assert.Empty(t, url.fetches)
}

func TestDeleteConfigURLSuccess(t *testing.T) {
	conn := &fakeConn{}
	sess := newSession(t, conn, datastore.Running)
	url := &fakeURL{}
	h := &DeleteConfig{Registry: testRegistry(), URL: url}

	reply := h.Handle(context.Background(), rpcTarget(t, "<url>https://example.com/startup.xml</url>"), sess)
	exactlyOneResult(t, reply)

	require.True(t, reply.IsOK())
	assert.Equal(t, []string{"https://example.com/startup.xml"}, url.fetches)
	assert.Equal(t, []string{"https://example.com/startup.xml"}, url.reinits)
	assert.False(t, conn.mutated(), "url path must not touch internal stores")
}

func TestDeleteConfigURLFetchFailure(t *testing.T) {
	// Scenario C: unreachable location yields the fixed validation message.
	conn := &fakeConn{}
	sess := newSession(t, conn, datastore.Running)
	url := &fakeURL{fetchErr: errors.New("connection refused")}
	h := &DeleteConfig{Registry: testRegistry(), URL: url}

	reply := h.Handle(context.Background(), rpcTarget(t, "<url>https://example.com/gone.xml</url>"), sess)
	exactlyOneResult(t, reply)

	require.False(t, reply.IsOK())
	errs := reply.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, netconf.TagOperationFailed, errs[0].Tag)
	assert.Equal(t, "File at url does not appear to contain a valid config", errs[0].Message)
	assert.Empty(t, url.reinits, "no reinitialize after failed validation")
	assert.False(t, conn.mutated())
}

func TestDeleteConfigURLReinitializeFailure(t *testing.T) {
	conn := &fakeConn{}
	sess := newSession(t, conn, datastore.Running)
	url := &fakeURL{reinitErr: errors.New("read-only filesystem")}
	h := &DeleteConfig{Registry: testRegistry(), URL: url}

	reply := h.Handle(context.Background(), rpcTarget(t, "<url>file:///cfg.xml</url>"), sess)

	require.False(t, reply.IsOK())
	assert.Contains(t, reply.Errors()[0].Message, "read-only filesystem")
	assert.False(t, conn.mutated())
}

func TestDeleteConfigURLMissingValue(t *testing.T) {
	// Scenario D: empty url value, no fetch attempted.
	conn := &fakeConn{}
	sess := newSession(t, conn, datastore.Running)
	url := &fakeURL{}
	h := &DeleteConfig{Registry: testRegistry(), URL: url}

	reply := h.Handle(context.Background(), rpcTarget(t, "<url></url>"), sess)
	exactlyOneResult(t, reply)

	require.False(t, reply.IsOK())
	assert.Equal(t, "Missing target url", reply.Errors()[0].Message)
	assert.Empty(t, url.fetches)
	assert.False(t, conn.mutated())
}

func TestDeleteConfigURLCapabilityDisabled(t *testing.T) {
	// P5: nil client gates the capability off with zero mutations.
	conn := &fakeConn{}
	sess := newSession(t, conn, datastore.Running)
	h := &DeleteConfig{Registry: testRegistry(), URL: nil}

	reply := h.Handle(context.Background(), rpcTarget(t, "<url>https://example.com/cfg.xml</url>"), sess)
	exactlyOneResult(t, reply)

	require.False(t, reply.IsOK())
	assert.Equal(t, netconf.TagOperationFailed, reply.Errors()[0].Tag)
	assert.Equal(t, "<url> source not supported", reply.Errors()[0].Message)
	assert.False(t, conn.mutated())
}

func TestDeleteConfigMissingTarget(t *testing.T) {
	conn := &fakeConn{}
	sess := newSession(t, conn, datastore.Running)
	h := &DeleteConfig{Registry: testRegistry()}

	node, err := netconf.ParseString(`<delete-config><target></target></delete-config>`)
	require.NoError(t, err)
	reply := h.Handle(context.Background(), node, sess)
	exactlyOneResult(t, reply)

	require.False(t, reply.IsOK())
	assert.Equal(t, netconf.TagInvalidValue, reply.Errors()[0].Tag)
	assert.False(t, conn.mutated())
}

func TestResolveTargetIdempotent(t *testing.T) {
	// P2: resolving the same request twice yields the same target.
	h := &DeleteConfig{Registry: testRegistry(), URL: &fakeURL{}}

	req := rpcTarget(t, "<startup/>")
	first, err1 := h.resolveTarget(req)
	second, err2 := h.resolveTarget(req)
	require.Nil(t, err1)
	require.Nil(t, err2)
	assert.Equal(t, first, second)

	urlReq := rpcTarget(t, "<url>file:///cfg.xml</url>")
	u1, _ := h.resolveTarget(urlReq)
	u2, _ := h.resolveTarget(urlReq)
	assert.Equal(t, u1, u2)
	assert.True(t, u1.external)
	assert.Equal(t, "file:///cfg.xml", u1.url)
}

func TestDeleteConfigAtomicityAgainstMemoryEngine(t *testing.T) {
	// P1 against the real memory engine: a mid-sequence failure leaves
	// the store byte-for-byte unchanged; full success leaves no
	// configuration-bearing content.
	ctx := context.Background()
	seed := func(t *testing.T) *datastore.MemoryEngine {
		e := datastore.NewMemoryEngine()
		require.NoError(t, e.SetNode(datastore.Startup, "ietf-interfaces", "/interfaces/interface[name='eth0']", "up"))
		require.NoError(t, e.SetNode(datastore.Startup, "ietf-system", "/system/hostname", "router-1"))
		require.NoError(t, e.SetNode(datastore.Startup, "example-acl", "/acl-entries[1]", "permit"))
		return e
	}

	t.Run("all deletes succeed", func(t *testing.T) {
		e := seed(t)
		t.Cleanup(func() { _ = e.Close() })
		conn, err := e.Connect(ctx, datastore.Startup)
		require.NoError(t, err)
		sess := newSession(t, conn, datastore.Startup)
		h := &DeleteConfig{Registry: testRegistry()}

		reply := h.Handle(ctx, rpcTarget(t, "<startup/>"), sess)
		require.True(t, reply.IsOK(), "errors: %+v", reply.Errors())
		assert.Empty(t, e.Snapshot(datastore.Startup), "no configuration content survives")
	})

	t.Run("mid-sequence failure", func(t *testing.T) {
		e := seed(t)
		t.Cleanup(func() { _ = e.Close() })
		conn, err := e.Connect(ctx, datastore.Startup)
		require.NoError(t, err)
		before := e.Snapshot(datastore.Startup)

		flaky := &failingDelete{Connection: conn, failOn: "example-acl"}
		sess := newSession(t, flaky, datastore.Startup)
		h := &DeleteConfig{Registry: testRegistry()}

		reply := h.Handle(ctx, rpcTarget(t, "<startup/>"), sess)
		require.False(t, reply.IsOK())
		assert.Equal(t, before, e.Snapshot(datastore.Startup), "no partial clears survive")
	})
}

// failingDelete delegates to a real connection but fails the delete of one
// module.
type failingDelete struct {
	datastore.Connection
	failOn string
}

func (f *failingDelete) DeleteModule(ctx context.Context, module string) error {
	if module == f.failOn {
		return errors.New("simulated engine failure")
	}
	return f.Connection.DeleteModule(ctx, module)
}
