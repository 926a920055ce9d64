package main

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/tabapp/tabapp/internal/appstate"
	"github.com/tabapp/tabapp/internal/biometric"
	"github.com/tabapp/tabapp/internal/config"
	"github.com/tabapp/tabapp/internal/directory"
	"github.com/tabapp/tabapp/internal/infra"
	"github.com/tabapp/tabapp/internal/logging"
	"github.com/tabapp/tabapp/internal/navigation"
	"github.com/tabapp/tabapp/internal/securestore"
	"github.com/tabapp/tabapp/internal/session"
	"github.com/tabapp/tabapp/internal/validator"
)

const redisStorePrefix = "tabapp:secure:"

// directoryClient is satisfied by both the HTTP and the in-process
// validators.
type directoryClient interface {
	session.Validator
	session.UserLister
}

// clientRuntime holds one command's worth of wiring.
type clientRuntime struct {
	cfg       config.Config
	logger    *slog.Logger
	out       io.Writer
	store     securestore.Store
	directory directoryClient
	state     *appstate.Store
	coord     *session.Coordinator
	registry  *prometheus.Registry
	opts      *rootOptions
	cache     *redis.Client
}

func newRuntime(cmd *cobra.Command, opts *rootOptions) (*clientRuntime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.directoryURL != "" {
		cfg.DirectoryURL = opts.directoryURL
	}
	if opts.secureStore != "" {
		cfg.SecureStore = strings.ToLower(opts.secureStore)
	}

	rt := &clientRuntime{
		cfg:      cfg,
		logger:   logging.NewWithWriter(cmd.ErrOrStderr(), cfg.AppName, cfg.LogLevel),
		out:      cmd.OutOrStdout(),
		registry: prometheus.NewRegistry(),
		opts:     opts,
	}

	if err := rt.openStore(cmd); err != nil {
		return nil, err
	}

	if err := rt.openDirectory(cmd); err != nil {
		rt.Close()
		return nil, err
	}

	capability, err := capabilityFromKinds(cfg.BiometricKinds)
	if err != nil {
		rt.Close()
		return nil, err
	}
	gate := biometric.NewTerminal(cmd.InOrStdin(), rt.out, capability, cfg.BiometricTimeout)

	metrics, err := session.NewMetrics(rt.registry)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var writer *appstate.Writer
	rt.state, writer = appstate.New(rt.logger)
	rt.coord, err = session.New(session.Deps{
		Store:     rt.store,
		Validator: rt.directory,
		Lister:    rt.directory,
		Gate:      gate,
		State:     writer,
		Navigator: navigation.NewLoggerNavigator(rt.logger),
		Logger:    rt.logger,
		Metrics:   metrics,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *clientRuntime) openStore(cmd *cobra.Command) error {
	switch rt.cfg.SecureStore {
	case config.SecureStoreMemory:
		rt.store = securestore.NewMemory()
	case config.SecureStoreRedis:
		if rt.cfg.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set for the redis secure store")
		}
		cache, err := infra.NewRedisClient(cmd.Context(), rt.cfg.RedisURL)
		if err != nil {
			return err
		}
		rt.cache = cache
		rt.store = securestore.NewRedis(cache, redisStorePrefix)
	case config.SecureStoreFile:
		store, err := securestore.NewFile(rt.cfg.SecureStorePath, rt.cfg.SecureStoreSecret)
		if err != nil {
			return err
		}
		rt.store = store
	default:
		return fmt.Errorf("unknown secure store %q", rt.cfg.SecureStore)
	}
	return nil
}

// openDirectory points the validator at the remote directory, or at an
// in-process one seeded from YAML when --offline-seed is given.
func (rt *clientRuntime) openDirectory(cmd *cobra.Command) error {
	if rt.opts.offlineSeed == "" {
		v, err := validator.NewHTTP(rt.cfg.DirectoryURL, validator.WithTimeout(rt.cfg.DirectoryTimeout))
		if err != nil {
			return err
		}
		rt.directory = v
		return nil
	}

	users, err := directory.LoadSeedFile(rt.opts.offlineSeed)
	if err != nil {
		return err
	}
	svc := directory.NewService(directory.NewMemoryRepository(), rt.logger, directory.WithBcryptCost(bcrypt.MinCost))
	if _, err := svc.Seed(cmd.Context(), users); err != nil {
		return fmt.Errorf("seed offline directory: %w", err)
	}
	rt.directory = validator.NewLocal(svc)
	return nil
}

// Close releases the runtime and prints the session counters when asked.
func (rt *clientRuntime) Close() {
	if rt.opts != nil && rt.opts.showMetrics {
		rt.printMetrics()
	}
	if rt.state != nil {
		rt.state.Close()
	}
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			rt.logger.Warn("close redis", "error", err)
		}
	}
}

func (rt *clientRuntime) printMetrics() {
	families, err := rt.registry.Gather()
	if err != nil {
		rt.logger.Warn("gather metrics", "error", err)
		return
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(rt.out, l)
	}
}

// printState writes the coordinator and shared state in a stable,
// line-oriented form.
func (rt *clientRuntime) printState() {
	st := rt.coord.State()
	fmt.Fprintf(rt.out, "phase: %s\n", st.Phase)
	if st.Identity != nil {
		fmt.Fprintf(rt.out, "login: %s\n", st.Identity.Login)
	}
	if name := rt.state.DisplayName(); name != "" {
		fmt.Fprintf(rt.out, "display name: %s\n", name)
	}
	if st.Failure != nil {
		fmt.Fprintf(rt.out, "failure: %s", st.Failure.Reason)
		if st.Failure.Detail != "" {
			fmt.Fprintf(rt.out, " (%s)", st.Failure.Detail)
		}
		fmt.Fprintln(rt.out)
	}
}

// capabilityFromKinds describes the device from BIOMETRIC_KINDS. An empty
// list means no biometric hardware.
func capabilityFromKinds(names []string) (biometric.Capability, error) {
	var capability biometric.Capability
	for _, name := range names {
		kind, err := biometric.ParseKind(name)
		if err != nil {
			return biometric.Capability{}, err
		}
		capability.Kinds = append(capability.Kinds, kind)
	}
	capability.HasHardware = len(capability.Kinds) > 0
	capability.IsEnrolled = capability.HasHardware
	return capability, nil
}
