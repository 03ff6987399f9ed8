package app

import (
	"context"
	"fmt"
	"time"

	"github.com/openquill/platform/internal/app/auth"
	articlesvc "github.com/openquill/platform/internal/app/services/articles"
	commentsvc "github.com/openquill/platform/internal/app/services/comments"
	donationsvc "github.com/openquill/platform/internal/app/services/donations"
	engagementsvc "github.com/openquill/platform/internal/app/services/engagement"
	identitysvc "github.com/openquill/platform/internal/app/services/identity"
	reconcilersvc "github.com/openquill/platform/internal/app/services/reconciler"
	tagsvc "github.com/openquill/platform/internal/app/services/tags"
	userssvc "github.com/openquill/platform/internal/app/services/users"
	"github.com/openquill/platform/internal/app/storage"
	"github.com/openquill/platform/internal/app/storage/memory"
	"github.com/openquill/platform/internal/app/system"
	"github.com/openquill/platform/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users      storage.UserStore
	Articles   storage.ArticleStore
	Comments   storage.CommentStore
	Engagement storage.EngagementStore
	Tags       storage.TagStore
	Donations  storage.DonationStore
	Sessions   storage.SessionStore
	Reconciler storage.ReconcilerStore
}

// Options tunes the assembled application.
type Options struct {
	JWTSecret          string
	TokenTTL           time.Duration
	ArticleCache       articlesvc.Cache
	ReconcilerSchedule string
	// ReconcilerEnabled gates the background reconciliation job. The on-demand
	// RunNow path stays available either way.
	ReconcilerEnabled bool
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Identity   *identitysvc.Service
	Users      *userssvc.Service
	Articles   *articlesvc.Service
	Comments   *commentsvc.Service
	Engagement *engagementsvc.Service
	Tags       *tagsvc.Service
	Donations  *donationsvc.Service
	Reconciler *reconcilersvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if opts.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Articles == nil {
		stores.Articles = mem
	}
	if stores.Comments == nil {
		stores.Comments = mem
	}
	if stores.Engagement == nil {
		stores.Engagement = mem
	}
	if stores.Tags == nil {
		stores.Tags = mem
	}
	if stores.Donations == nil {
		stores.Donations = mem
	}
	if stores.Sessions == nil {
		stores.Sessions = mem
	}
	if stores.Reconciler == nil {
		stores.Reconciler = mem
	}

	manager := system.NewManager()

	tokens := auth.NewManager(opts.JWTSecret, opts.TokenTTL)
	identityService := identitysvc.New(stores.Users, stores.Sessions, tokens, log)
	usersService := userssvc.New(stores.Users, log)

	var articleOpts []articlesvc.Option
	if opts.ArticleCache != nil {
		articleOpts = append(articleOpts, articlesvc.WithCache(opts.ArticleCache))
	}
	articlesService := articlesvc.New(stores.Articles, log, articleOpts...)
	commentsService := commentsvc.New(stores.Comments, stores.Articles, log)
	engagementService := engagementsvc.New(stores.Engagement, log)
	tagsService := tagsvc.New(stores.Tags, stores.Articles, log)
	donationsService := donationsvc.New(stores.Donations, log)
	reconcilerService := reconcilersvc.New(stores.Reconciler, opts.ReconcilerSchedule, log)

	for _, name := range []string{"identity", "articles", "engagement"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}
	if opts.ReconcilerEnabled {
		if err := manager.Register(reconcilerService); err != nil {
			return nil, fmt.Errorf("register reconciler: %w", err)
		}
	}

	return &Application{
		manager:    manager,
		log:        log,
		Identity:   identityService,
		Users:      usersService,
		Articles:   articlesService,
		Comments:   commentsService,
		Engagement: engagementService,
		Tags:       tagsService,
		Donations:  donationsService,
		Reconciler: reconcilerService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
