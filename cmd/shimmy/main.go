// Package main provides the shimmy CLI entry point.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/localforge/shimmy/pkg/cache"
	"github.com/localforge/shimmy/pkg/config"
	"github.com/localforge/shimmy/pkg/discovery"
	"github.com/localforge/shimmy/pkg/engine/gpu"
	"github.com/localforge/shimmy/pkg/engine/llama"
	"github.com/localforge/shimmy/pkg/protocol"
	"github.com/localforge/shimmy/pkg/registry"
	"github.com/localforge/shimmy/pkg/server"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shimmy",
		Short: "shimmy - single-binary local LLM inference server",
		Long: `shimmy runs local GGUF (and optionally SafeTensors/MLX/HuggingFace) models
behind an HTTP server that speaks both the OpenAI and Anthropic chat APIs.

Features:
  • Zero-config model discovery across common install locations
  • OpenAI /v1/chat/completions and Anthropic /v1/messages compatibility
  • Streaming responses over Server-Sent Events
  • Optional GPU acceleration (CUDA, Vulkan, OpenCL)
  • Response caching keyed on model + prompt + sampling parameters`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("shimmy v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the shimmy server",
		RunE:  runServe,
	}
	serveCmd.Flags().String("bind", "", "bind address, e.g. 0.0.0.0:11435 (overrides SHIMMY_BIND_ADDRESS/SHIMMY_PORT)")
	serveCmd.Flags().String("gpu-backend", "", "auto|cpu|cuda|vulkan|opencl (overrides SHIMMY_GPU_BACKEND)")
	rootCmd.AddCommand(serveCmd)

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Scan configured model roots and print what would be registered",
		RunE:  runDiscover,
	}
	rootCmd.AddCommand(discoverCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()
	models := scan(cfg)
	fmt.Printf("found %d model(s)\n", len(models))
	for _, m := range models {
		fmt.Printf("  %-40s %-8s %-10s %s\n", m.Name, m.Family, m.QuantTag, m.Path)
	}
	return nil
}

func scan(cfg *config.Config) []discovery.DiscoveredModel {
	roots := discovery.AssembleRoots(cfg.Discovery.BaseGGUF, cfg.Discovery.ExtraPaths)
	ollamaRoot := discovery.ResolveOllamaRoot(cfg.Discovery.OllamaRoot)
	return discovery.Scan(roots, ollamaRoot)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()

	if bind, _ := cmd.Flags().GetString("bind"); bind != "" {
		cfg.Server.BindAddress = bind
	}
	if gb, _ := cmd.Flags().GetString("gpu-backend"); gb != "" {
		cfg.Engine.GPUBackend = gb
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Printf("🚀 Starting shimmy v%s\n", version)

	backend, err := gpu.Resolve(cfg.Engine.GPUBackend)
	if err != nil {
		return fmt.Errorf("resolving GPU backend: %w", err)
	}
	gpu.SetEnv(backend)
	fmt.Printf("   GPU backend:     %s\n", backend)

	reg := registry.New()
	if cfg.Discovery.BaseGGUF != "" {
		reg.Register(registry.ModelEntry{
			Name:        "default",
			BasePath:    cfg.Discovery.BaseGGUF,
			AdapterPath: cfg.Discovery.LoRAGGUF,
		})
	}

	fmt.Println("🔍 Scanning for models...")
	models := scan(cfg)
	reg.SetDiscovered(models)
	reg.AutoRegisterDiscovered()
	fmt.Printf("   Found %d model(s)\n", len(models))

	ggufEngine := llama.NewEngine(backend, llama.MoEConfig{})
	engines := protocol.NewEngineSet(ggufEngine)

	var respCache *cache.ResponseCache
	if cfg.Cache.Enabled {
		var store cache.PersistentStore
		badgerStore, err := cache.OpenBadgerStore(cfg.Cache.Dir)
		if err != nil {
			log.Printf("⚠️  response cache persistence unavailable (%v); continuing in-memory only", err)
		} else {
			store = badgerStore
			defer badgerStore.Close()
		}
		respCache = cache.NewResponseCache(cfg.Cache.MaxEntries, cfg.Cache.TTL, store)
		fmt.Printf("   Response cache:  enabled (max %d entries, ttl %s)\n", cfg.Cache.MaxEntries, cfg.Cache.TTL)
	} else {
		fmt.Println("   Response cache:  disabled")
	}

	usage := protocol.NewUsageRecorder(1024)
	handler := protocol.NewHandler(reg, engines, respCache, usage)

	srvConfig := server.DefaultConfig()
	srvConfig.WorkerPoolSize = cfg.Server.WorkerPoolSize
	if cfg.Server.BindAddress != "" {
		host, port, splitErr := splitBindAddress(cfg.Server.BindAddress)
		if splitErr != nil {
			return fmt.Errorf("invalid SHIMMY_BIND_ADDRESS: %w", splitErr)
		}
		srvConfig.Address = host
		srvConfig.Port = port
	} else {
		srvConfig.Port = cfg.Server.Port
	}

	httpServer, err := server.New(handler, srvConfig)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	httpServer.SetRescanFunc(func() int {
		fresh := scan(cfg)
		reg.SetDiscovered(fresh)
		reg.AutoRegisterDiscovered()
		return len(fresh)
	})

	if len(cfg.Server.Preload) > 0 {
		fmt.Println("📥 Preloading models...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		for _, name := range cfg.Server.Preload {
			spec, ok := reg.ToSpec(name)
			if !ok {
				log.Printf("⚠️  preload: model %q not found, skipping", name)
				continue
			}
			if _, _, loadErr := engines.Load(ctx, spec); loadErr != nil {
				log.Printf("⚠️  preload: %q failed to load: %v", name, loadErr)
				continue
			}
			fmt.Printf("   ✓ %s\n", name)
		}
		cancel()
	}

	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	fmt.Println()
	fmt.Println("✅ shimmy is ready!")
	fmt.Printf("  • OpenAI:   http://%s/v1/chat/completions\n", httpServer.Addr())
	fmt.Printf("  • Anthropic: http://%s/v1/messages\n", httpServer.Addr())
	fmt.Printf("  • Models:   http://%s/v1/models\n", httpServer.Addr())
	fmt.Printf("  • Health:   http://%s/health\n", httpServer.Addr())
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\n🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Stop(ctx); err != nil {
		return fmt.Errorf("stopping server: %w", err)
	}
	fmt.Println("✅ Server stopped gracefully")
	return nil
}

func splitBindAddress(addr string) (host string, port int, err error) {
	h, p, splitErr := net.SplitHostPort(addr)
	if splitErr != nil {
		return "", 0, splitErr
	}
	portNum, convErr := strconv.Atoi(p)
	if convErr != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", p, convErr)
	}
	return h, portNum, nil
}
