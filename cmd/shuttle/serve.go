//go:build linux

package main

import (
	"context"
	"net"
	"os/signal"
	"syscall"

	"github.com/gear6io/shuttle/config"
	"github.com/gear6io/shuttle/engine"
	"github.com/gear6io/shuttle/reactor"
	"github.com/gear6io/shuttle/session"
	"github.com/gear6io/shuttle/shared"
	"github.com/gear6io/shuttle/transport"
	ferrors "github.com/go-faster/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

var (
	cfgFile    string
	listenAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the echo server",
	Long: `Serve runs a single-threaded echo server: every framed message a
client sends is bridged through the engine and echoed back.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (host:port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.LoadDefaultConfig()
	if cfgFile != "" {
		loaded, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := config.SetupLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := newEchoServer(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create echo server")
		return err
	}

	logger.Info().Str("address", cfg.Listen).Msg("Starting echo server")
	return srv.run(ctx)
}

// echoServer accepts connections from its listener's readable events and
// bridges each one with an engine whose session echoes messages back.
type echoServer struct {
	cfg     *config.Config
	logger  zerolog.Logger
	reactor *reactor.Reactor

	listenFd  int
	listenReg shared.Registration

	components []shared.Component
	bridges    map[int]*bridge
}

func newEchoServer(cfg *config.Config, logger zerolog.Logger) (*echoServer, error) {
	rc, err := reactor.New(logger)
	if err != nil {
		return nil, err
	}

	fd, err := listenSocket(cfg.Listen)
	if err != nil {
		rc.Close()
		return nil, err
	}

	srv := &echoServer{
		cfg:        cfg,
		logger:     logger.With().Str("component", "echo-server").Logger(),
		reactor:    rc,
		listenFd:   fd,
		components: []shared.Component{rc},
		bridges:    make(map[int]*bridge),
	}

	reg, err := rc.Register(fd, srv)
	if err != nil {
		unix.Close(fd)
		rc.Close()
		return nil, err
	}
	srv.listenReg = reg

	if err := rc.SetReadable(reg); err != nil {
		unix.Close(fd)
		rc.Close()
		return nil, err
	}

	return srv, nil
}

// listenSocket creates a non-blocking listener bound to addr
func listenSocket(addr string) (int, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return -1, ferrors.Wrapf(err, "resolve %s", addr)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, ferrors.Wrap(err, "socket")
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, ferrors.Wrap(err, "set SO_REUSEADDR")
	}

	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	if ip := tcpAddr.IP.To4(); ip != nil {
		copy(sa.Addr[:], ip)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, ferrors.Wrapf(err, "bind %s", addr)
	}
	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return -1, ferrors.Wrap(err, "listen")
	}

	return fd, nil
}

// OnReadable accepts every pending connection on the listener
func (s *echoServer) OnReadable() {
	for {
		fd, _, err := unix.Accept4(s.listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			return
		}
		if err := s.addBridge(fd); err != nil {
			s.logger.Error().Err(err).Int("fd", fd).Msg("Failed to bridge connection")
			unix.Close(fd)
			continue
		}
		// The drain pass inside Plug may have torn the bridge down already
		// when the peer closed right after connecting.
		if _, live := s.bridges[fd]; live {
			s.logger.Debug().Int("fd", fd).Int("connections", len(s.bridges)).Msg("Client connected")
		}
	}
}

// OnWritable is never requested for the listener
func (s *echoServer) OnWritable() {}

func (s *echoServer) addBridge(fd int) error {
	conn, err := transport.Open(fd, s.cfg.Engine.SendBuffer, s.cfg.Engine.RecvBuffer, s.logger)
	if err != nil {
		return err
	}

	b := &bridge{srv: s, fd: fd, conn: conn}
	b.sess = session.New(session.Config{
		InQueueSize:  s.cfg.Session.InQueueSize,
		OutQueueSize: s.cfg.Session.OutQueueSize,
	}, b.echo, b.detached, s.logger)

	b.eng = engine.New(conn, s.cfg.Engine, s.logger)
	b.sess.BindEngine(b.eng)
	b.eng.SetDisposeHook(func() { s.remove(b) })

	// The bridge must be in the map before Plug: the immediate drain pass can
	// dispose the engine synchronously, and the dispose hook removes by fd.
	s.bridges[fd] = b
	if err := b.eng.Plug(s.reactor, b.sess); err != nil {
		delete(s.bridges, fd)
		return err
	}
	return nil
}

func (s *echoServer) remove(b *bridge) {
	delete(s.bridges, b.fd)
	b.sess.BindEngine(nil)
	b.conn.Close()
	s.logger.Debug().Int("fd", b.fd).Msg("Client disconnected")
}

func (s *echoServer) run(ctx context.Context) error {
	err := s.reactor.Run(ctx)

	for _, b := range s.bridges {
		if b.eng.Plugged() {
			b.eng.Terminate()
		}
	}
	unix.Close(s.listenFd)
	for _, c := range s.components {
		if serr := c.Shutdown(context.Background()); serr != nil {
			s.logger.Error().Err(serr).Str("component", c.GetType()).Msg("Component shutdown failed")
			if err == nil {
				err = serr
			}
		}
	}

	s.logger.Info().Msg("Echo server stopped")
	return err
}

// bridge ties one connection's engine and session together with the echo
// policy.
type bridge struct {
	srv  *echoServer
	fd   int
	conn *transport.Conn
	eng  *engine.Engine
	sess *session.Session
}

// echo sends every received message straight back
func (b *bridge) echo(msg []byte) {
	if err := b.sess.Send(msg); err != nil {
		b.srv.logger.Warn().Err(err).Int("fd", b.fd).Msg("Dropping message, outbound queue full")
	}
}

// detached is the session's connection-loss policy; the dispose hook does
// the actual cleanup right after.
func (b *bridge) detached() {
	b.srv.logger.Debug().Int("fd", b.fd).Str("session_id", b.sess.ID()).Msg("Connection lost")
}
