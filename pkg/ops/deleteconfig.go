// Package ops implements the server's NETCONF operation handlers on top
// of the datastore, schema and session layers.
package ops

import (
	"context"
	"time"

	"github.com/skolbel/netopeer2/pkg/datastore"
	"github.com/skolbel/netopeer2/pkg/netconf"
	"github.com/skolbel/netopeer2/pkg/schema"
	"github.com/skolbel/netopeer2/pkg/session"
	"github.com/skolbel/netopeer2/pkg/telemetry"
	"github.com/skolbel/netopeer2/pkg/urlstore"
)

// DeleteConfigPath identifies the delete-config operation for permission
// checks.
const DeleteConfigPath = "/ietf-netconf:delete-config"

const targetSelector = "/delete-config/target/*"

// DeleteConfig handles the <delete-config> operation: erase the entire
// configuration content of a named store, or validate and reinitialize an
// external url location. All collaborators are injected; a nil URL client
// disables the url capability.
type DeleteConfig struct {
	Registry *schema.Registry
	Checker  session.ExecChecker
	URL      urlstore.Client
}

// target is the resolved subject of the operation: either a built-in
// store or an external url location.
type target struct {
	store    datastore.Store
	url      string
	external bool
}

// Handle executes the operation and returns its single terminal reply.
// Every failure path discards any staged changes before returning, so a
// failed operation leaves the bound store untouched.
func (h *DeleteConfig) Handle(ctx context.Context, rpc *netconf.Node, sess *session.Session) *netconf.Reply {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "netconf.delete-config")

	reply, store := h.handle(ctx, rpc, sess)

	var spanErr error
	var errTag string
	if !reply.IsOK() {
		if errs := reply.Errors(); len(errs) > 0 {
			spanErr = errs[0]
			errTag = string(errs[0].Tag)
		}
	}
	telemetry.EndSpan(span, spanErr)
	telemetry.RecordOperation(ctx, telemetry.OperationData{
		Operation: "delete-config",
		Store:     store,
		SessionID: sess.ID(),
		ErrorTag:  errTag,
		Duration:  time.Since(start),
		Failed:    !reply.IsOK(),
	})
	return reply
}

func (h *DeleteConfig) handle(ctx context.Context, rpc *netconf.Node, sess *session.Session) (*netconf.Reply, string) {
	if err := h.checker().CheckExec(ctx, sess, DeleteConfigPath); err != nil {
		return netconf.ErrorReply(netconf.NewError(netconf.TagAccessDenied, err.Error())), ""
	}

	t, rpcErr := h.resolveTarget(rpc)
	if rpcErr != nil {
		return netconf.ErrorReply(rpcErr), ""
	}

	if t.external {
		return h.eraseViaURL(ctx, t.url), "url"
	}

	if rpcErr := ensureBound(ctx, sess, t.store); rpcErr != nil {
		return netconf.ErrorReply(rpcErr), t.store.String()
	}

	return h.eraseAll(ctx, sess.Conn()), t.store.String()
}

// resolveTarget inspects the single child of the request's target node.
// The request is assumed validated against the operation's schema, so an
// absent or unknown target is reported as an invalid-value protocol
// error rather than tolerated.
func (h *DeleteConfig) resolveTarget(rpc *netconf.Node) (target, *netconf.RPCError) {
	nodes := netconf.FindPath(rpc, targetSelector)
	if len(nodes) != 1 {
		e := netconf.NewError(netconf.TagInvalidValue, "Missing delete-config target")
		e.Type = netconf.ErrorTypeProtocol
		return target{}, e
	}
	node := nodes[0]

	if node.Name == "url" {
		if h.URL == nil {
			return target{}, netconf.NewError(netconf.TagOperationFailed, "<url> source not supported")
		}
		if node.Value == "" {
			return target{}, netconf.NewError(netconf.TagOperationFailed, "Missing target url")
		}
		return target{url: node.Value, external: true}, nil
	}

	store, err := datastore.ParseStore(node.Name)
	if err != nil {
		e := netconf.Errorf(netconf.TagInvalidValue, "Unknown delete-config target <%s>", node.Name)
		e.Type = netconf.ErrorTypeProtocol
		return target{}, e
	}
	return target{store: store}, nil
}

// eraseViaURL validates that the location currently holds a well-formed
// configuration, then resets the location itself. The fetched document is
// only a validity gate and is discarded; no internal store is touched.
func (h *DeleteConfig) eraseViaURL(ctx context.Context, location string) *netconf.Reply {
	if _, err := h.URL.FetchConfig(ctx, location); err != nil {
		return netconf.ErrorReply(
			netconf.NewError(netconf.TagOperationFailed, "File at url does not appear to contain a valid config"),
		)
	}
	if err := h.URL.Reinitialize(ctx, location); err != nil {
		return netconf.ErrorReply(netconf.NewError(netconf.TagOperationFailed, err.Error()))
	}
	return netconf.OK()
}

// ensureBound switches the session's connection to store when needed and
// always refreshes the view before any mutation is attempted.
func ensureBound(ctx context.Context, sess *session.Session, store datastore.Store) *netconf.RPCError {
	conn := sess.Conn()
	if sess.BoundStore() != store {
		if err := conn.SwitchStore(ctx, store); err != nil {
			return netconf.Errorf(netconf.TagOperationFailed, "switching to %s datastore failed: %v", store, err)
		}
		sess.SetBoundStore(store)
	}
	if err := conn.Refresh(ctx); err != nil {
		return netconf.Errorf(netconf.TagOperationFailed, "refreshing %s datastore failed: %v", store, err)
	}
	return nil
}

// eraseAll removes all configuration data, one module at a time, and
// commits the aggregate as a single transaction. The engine does not
// accept a global wildcard, so deletion is issued per module; modules
// whose top-level nodes carry no configuration data are skipped without
// contacting the engine.
func (h *DeleteConfig) eraseAll(ctx context.Context, conn datastore.Connection) *netconf.Reply {
	for _, mod := range h.Registry.Modules() {
		if !mod.HasWritableData() {
			continue
		}
		if err := conn.DeleteModule(ctx, mod.Name); err != nil {
			conn.DiscardChanges(ctx)
			return netconf.ErrorReply(
				netconf.Errorf(netconf.TagOperationFailed, "deleting data of module %s failed: %v", mod.Name, err),
			)
		}
	}
	if err := conn.Commit(ctx); err != nil {
		conn.DiscardChanges(ctx)
		return netconf.ErrorReply(
			netconf.Errorf(netconf.TagOperationFailed, "commit failed: %v", err),
		)
	}
	return netconf.OK()
}

func (h *DeleteConfig) checker() session.ExecChecker {
	if h.Checker == nil {
		return session.AllowAll{}
	}
	return h.Checker
}
