package bootstrap

import (
	"context"
	"fmt"
	"os"

	"docchat-client/internal/config"
	"docchat-client/internal/constant"
	"docchat-client/internal/controller"
	"docchat-client/internal/handler"
	"docchat-client/internal/pkg/logger"
	"docchat-client/internal/repository/cache"
	"docchat-client/internal/repository/memory"
	"docchat-client/internal/repository/unitofwork"
	"docchat-client/internal/service"
	"docchat-client/internal/websocket"
	"docchat-client/pkg/backend"
	"docchat-client/pkg/backend/rest"
	chatevents "docchat-client/pkg/chat/events"
	pktNats "docchat-client/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AuthController controller.IAuthController
	ChatController controller.IChatController

	// Services (exposed for cmd/ front-ends)
	IdentityService service.IIdentityService
	ChatService     service.IChatService
	ConsumerService service.IConsumerService

	// WebSockets
	WorkspaceHandler *handler.WorkspaceHandler
	WebSocketHub     *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

type Options struct {
	// Quiet keeps the console free of log output; file logging continues.
	Quiet bool
}

// NewContainer wires the workspace. db may be nil, which selects the
// in-memory store.
func NewContainer(db *gorm.DB, cfg *config.Config, opts Options) *Container {
	c := &Container{}

	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction(), opts.Quiet)
	gatewayLogger := logger.NewIsolatedLogger(cfg.App.GatewayLogFilePath)
	c.Logger = sysLogger

	identityService := service.NewIdentityService(cfg.Auth.JWTSecret, sysLogger)

	var chatBackend backend.ChatBackend = rest.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, gatewayLogger,
		rest.WithTokenSource(identityService.TokenSource()),
	)

	var uowFactory unitofwork.RepositoryFactory
	if db != nil {
		uowFactory = unitofwork.NewRepositoryFactory(db, cfg.Database.Timeout)
	} else {
		sysLogger.Warn("Bootstrap", "No DB_CONNECTION_STRING, using the in-memory store", nil)
		store := memory.NewStore()
		store.SetTimeout(cfg.Database.Timeout)
		uowFactory = memory.NewRepositoryFactory(store)
	}

	// 2. Description cache: shared through Redis when configured.
	var descriptions cache.DescriptionCache = cache.NewLocal(cfg.Cache.DescriptionTTL)
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to Redis, using local cache", map[string]interface{}{"error": err.Error()})
			rdb.Close()
		} else {
			descriptions = cache.NewRedis(rdb, cfg.Cache.DescriptionTTL, sysLogger)
			c.closers = append(c.closers, func() { rdb.Close() })
		}
	}

	// 3. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 64,

			// Snapshots leave in the order they were taken.
			BlockPublishUntilSubscriberAck: true,
		},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { pubSub.Close() })

	// 4. Activity (NATS, optional)
	var activity chatevents.Publisher = chatevents.Nop{}
	var natsSub *pktNats.Subscriber
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
		} else {
			activity = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
		natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS Subscriber", map[string]interface{}{"error": err.Error()})
			natsSub = nil
		} else {
			c.closers = append(c.closers, natsSub.Close)
		}
	}

	// 5. Services
	wsHub := websocket.NewHub(sysLogger)
	go wsHub.Run()

	publisherService := service.NewPublisherService(constant.TopicWorkspaceChanged, pubSub)
	consumerService := service.NewConsumerService(pubSub, constant.TopicWorkspaceChanged, wsHub, sysLogger)

	chatService := service.NewChatService(service.ChatServiceDeps{
		UowFactory: uowFactory,
		Cache:      descriptions,
		Backend:    chatBackend,
		Identity:   identityService,
		Publisher:  publisherService,
		Activity:   activity,
		Origin:     instanceOrigin(),
		Logger:     sysLogger,
	})

	if natsSub != nil {
		durable := "docchat-" + uuid.NewString()[:8]
		if err := natsSub.Subscribe(pktNats.ActivitySubjects, durable, chatService.HandleActivity); err != nil {
			sysLogger.Warn("Bootstrap", "Failed to subscribe to activity", map[string]interface{}{"error": err.Error()})
		}
	}

	// 6. Controllers
	c.AuthController = controller.NewAuthController(identityService, chatService)
	c.ChatController = controller.NewChatController(chatService, identityService)
	c.WorkspaceHandler = handler.NewWorkspaceHandler(identityService, wsHub, sysLogger)
	c.WebSocketHub = wsHub
	c.IdentityService = identityService
	c.ChatService = chatService
	c.ConsumerService = consumerService
	c.closers = append(c.closers, func() {
		_ = sysLogger.Sync()
		_ = gatewayLogger.Sync()
	})

	return c
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func instanceOrigin() string {
	host, err := os.Hostname()
	if err != nil {
		host = "docchat"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}
