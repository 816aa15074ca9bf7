// Command netopeer2-server runs a minimal NETCONF-style configuration
// server exposing the delete-config operation over a TCP listener with
// end-of-message framing.
package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/skolbel/netopeer2/pkg/config"
	"github.com/skolbel/netopeer2/pkg/datastore"
	"github.com/skolbel/netopeer2/pkg/netconf"
	"github.com/skolbel/netopeer2/pkg/ops"
	"github.com/skolbel/netopeer2/pkg/schema"
	"github.com/skolbel/netopeer2/pkg/session"
	"github.com/skolbel/netopeer2/pkg/telemetry"
	"github.com/skolbel/netopeer2/pkg/urlstore"
)

// frameEnd is the NETCONF 1.0 end-of-message delimiter.
var frameEnd = []byte("]]>]]>")

func main() {
	configPath := flag.String("config", "", "path to server config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	modules, errs := schema.LoadDir(cfg.SchemaDir)
	for _, err := range errs {
		logger.Warn("schema load", "err", err)
	}
	registry := schema.NewRegistry(modules...)
	logger.Info("schema registry loaded", "dir", cfg.SchemaDir, "modules", registry.Len())

	watcher, err := schema.NewWatcher(cfg.SchemaDir, registry, logger)
	if err != nil {
		return err
	}
	go watcher.Run(ctx)
	defer watcher.Close()

	engine, err := datastore.New(cfg.Datastore.Backend, cfg.Datastore.DataDir)
	if err != nil {
		return err
	}
	defer engine.Close()

	mgr, err := telemetry.NewManager(ctx, telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		Environment:  cfg.Telemetry.Environment,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	telemetry.SetDefault(mgr)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mgr.Shutdown(shutdownCtx)
	}()

	var urlClient urlstore.Client
	if cfg.URL.Enabled {
		client, err := urlstore.NewStoreClient(registry, nil)
		if err != nil {
			return err
		}
		urlClient = client
	}

	handler := &ops.DeleteConfig{
		Registry: registry,
		Checker:  session.AllowAll{},
		URL:      urlClient,
	}

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()
	logger.Info("listening", "addr", cfg.Listen, "url_capability", cfg.URL.Enabled)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go serveConn(ctx, conn, engine, handler, logger)
	}
}

// serveConn handles one client connection: a session is opened against
// the running store and RPC frames are processed strictly in order.
func serveConn(ctx context.Context, conn net.Conn, engine datastore.Engine, handler *ops.DeleteConfig, logger *slog.Logger) {
	defer conn.Close()

	dsConn, err := engine.Connect(ctx, datastore.Running)
	if err != nil {
		logger.Error("datastore connect", "err", err)
		return
	}
	sess, err := session.New(dsConn)
	if err != nil {
		logger.Error("new session", "err", err)
		return
	}
	logger.Info("session opened", "session", sess.ID(), "peer", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	scanner.Split(splitFrames)
	for scanner.Scan() {
		frame := strings.TrimSpace(scanner.Text())
		if frame == "" {
			continue
		}
		reply := dispatch(ctx, frame, sess, handler)
		if err := writeReply(conn, reply); err != nil {
			logger.Warn("write reply", "session", sess.ID(), "err", err)
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		logger.Warn("session read", "session", sess.ID(), "err", err)
	}
	logger.Info("session closed", "session", sess.ID())
}

func dispatch(ctx context.Context, frame string, sess *session.Session, handler *ops.DeleteConfig) *netconf.Reply {
	rpc, err := netconf.ParseString(frame)
	if err != nil {
		e := netconf.NewError(netconf.TagOperationFailed, "malformed rpc document")
		e.Type = netconf.ErrorTypeProtocol
		return netconf.ErrorReply(e)
	}
	if rpc.Name != "rpc" || len(rpc.Children) != 1 {
		e := netconf.NewError(netconf.TagOperationFailed, "expected a single operation inside <rpc>")
		e.Type = netconf.ErrorTypeProtocol
		return netconf.ErrorReply(e)
	}
	op := rpc.Children[0]
	switch op.Name {
	case "delete-config":
		return handler.Handle(ctx, op, sess)
	default:
		e := netconf.Errorf(netconf.TagOperationNotSupported, "operation <%s> is not supported", op.Name)
		e.Type = netconf.ErrorTypeProtocol
		return netconf.ErrorReply(e)
	}
}

func writeReply(w io.Writer, reply *netconf.Reply) error {
	var buf bytes.Buffer
	if err := reply.Encode(&buf); err != nil {
		return err
	}
	buf.WriteString("\n")
	buf.Write(frameEnd)
	buf.WriteString("\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// splitFrames is a bufio.SplitFunc cutting the stream on the NETCONF
// end-of-message delimiter.
func splitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.Index(data, frameEnd); i >= 0 {
		return i + len(frameEnd), data[:i], nil
	}
	if atEOF {
		if len(data) == 0 {
			return 0, nil, nil
		}
		return len(data), data, nil
	}
	return 0, nil, nil
}
