package main

import (
	"bufio"
	"chat-sync/auth"
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/infrastructure/backend"
	"chat-sync/infrastructure/fcm"
	"chat-sync/infrastructure/grpc/pushpb"
	"chat-sync/infrastructure/grpc/server"
	"chat-sync/infrastructure/storage"
	"chat-sync/projection"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"chat-sync/services"
	"chat-sync/sink"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"

	grpc3 "github.com/mama165/sdk-go/grpc"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const highWatermark = 80

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatsync terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the client, serves inbound pushes and, when a peer is configured,
// reads outgoing messages from stdin until a signal arrives.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("invalid config: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	userID, err := auth.ParseSession(config.SessionToken, []byte(config.SessionSecret))
	if err != nil {
		return exitConfig, err
	}

	ctx := context.Background()

	// 2. Local cache (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		database.StartDebugServer(db, config.DebugPort, endpoint, ConversationMapper)
	}

	// 3. Observers & Supervision
	registry := runtime.NewRegistry()
	publisher := runtime.NewPublisher(logger, config.BufferSize, config.PublishWait)
	fanout := workers.NewEventFanout(logger, registry, publisher.Events(), config.SinkTimeout)
	capacity := workers.NewChannelCapacityWorker(logger, []workers.NamedChannel{
		{Name: "events", Channel: publisher.Events()},
	}, config.MetricInterval, highWatermark)

	// 4. Gateways & Projections
	client := backend.NewClient(logger, config.BackendURL, config.SessionToken,
		config.BackendTimeout, config.BackendMaxRetries, config.BackendRetryBackoff)
	repository := storage.NewConversationRepository(db, logger)
	index := projection.NewConversationIndex(logger, userID, client, client, repository, publisher, config.PeerLookupTimeout)
	tokens := services.NewTokenService(logger, client, fcm.StaticTokenSource{Token: config.DeviceToken})
	pusher := fcm.NewSender(logger, config.FCMEndpoint, config.FCMServerKey, config.FCMTimeout)
	router := services.NewNotificationRouter(logger, index, tokens, sink.NewConsolePresenter(os.Stdout, config.Colours))

	timeline := sink.NewTimeline()
	registry.Subscribe("log", event.ConversationsStream, sink.NewLogSink(logger))
	registry.Subscribe("timeline", event.ConversationsStream, timeline)

	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	sup := supervisor.Add(fanout, capacity)
	if config.RefreshInterval > 0 {
		sup.Add(workers.NewConversationRefreshWorker(logger, index, userID, config.RefreshInterval))
	}

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	go func() {
		logger.Info("Starting supervisor...")
		sup.Run(ctx)
	}()

	// 6. Warm start: cached list first, then the backend
	if err := index.Restore(); err != nil {
		logger.Warn("Conversation cache unreadable", "error", err)
	}
	if err := tokens.Register(ctx, userID); err != nil {
		logger.Warn("Device token not registered", "error", err)
	}
	if _, err := index.LoadAll(ctx, userID); err != nil {
		logger.Warn("Conversations unavailable", "error", err)
	}

	// 7. Push endpoint
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	interceptors := []grpc.UnaryServerInterceptor{grpc3.UnaryLoggingInterceptor(logger)}
	if config.PushSecret != "" {
		interceptors = append(interceptors, auth.UnaryInterceptor([]byte(config.PushSecret)))
	}
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	pushpb.RegisterPushServiceServer(s, server.NewPushServer(logger, router))

	go func() {
		logger.Info("Starting gRPC server", "address", address, "at", time.Now().UTC())
		if err := s.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 8. Interactive thread
	var session *services.ChatSession
	if config.PeerID != "" {
		peer, err := client.GetProfile(ctx, config.PeerID)
		if err != nil {
			logger.Warn("Peer profile unavailable", "peer", config.PeerID, "error", err)
			peer = domain.Profile{ID: config.PeerID}
		}
		pair := domain.NewPair(userID, peer.ID)
		store := projection.NewMessageStore(pair, publisher)
		session = services.NewChatSession(logger, userID, peer, config.ConversationID,
			store, index, client, client, client, tokens, pusher, publisher)
		registry.Subscribe("thread", event.ThreadStream(pair), sink.NewLogSink(logger))
		router.Attach(session)
		defer router.Detach(session)

		if err := session.Open(ctx); err != nil {
			return exitRuntime, fmt.Errorf("thread opening failed: %w", err)
		}
		for _, m := range store.Snapshot() {
			fmt.Println(m.Display())
		}
		go readOutgoing(ctx, logger, os.Stdin, session)
	}

	// 9. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 10. Final Cleanup
	logger.Info("Shutting down gracefully...")
	s.GracefulStop()
	if session != nil {
		session.Wait()
	}
	sup.Stop()
	logger.Info("Program stopped cleanly",
		"conversations", len(timeline.Conversations()),
		"fanout_restarts", supervisor.Restarts(contract.GetWorkerName(fanout)))

	return exitOK, nil
}

// readOutgoing sends every non-blank line of in as a text message.
func readOutgoing(ctx context.Context, logger *slog.Logger, in io.Reader, session *services.ChatSession) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		body := strings.TrimSpace(scanner.Text())
		if body == "" {
			continue
		}
		result := <-session.SendAsync(ctx, body, domain.KindText)
		if result.Err != nil {
			logger.Error("Message not sent", "error", result.Err)
			continue
		}
		fmt.Println(result.Message.Display())
	}
	if err := scanner.Err(); err != nil {
		logger.Error("Reading stdin failed", "error", err)
	}
}

func buildBadgerOpts(config Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// ConversationMapper renders a cached conversation record in the debug inspector.
func ConversationMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	conversation, err := storage.DecodeRecord(val)
	if err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}

	row.Type = "CONVERSATION"
	row.Detail = fmt.Sprintf("%s: %s", conversation.PeerID, conversation.LastMessageBody)
	if conversation.DisplayName != "" {
		row.Detail = fmt.Sprintf("%s: %s", conversation.DisplayName, conversation.LastMessageBody)
	}
	return row
}
