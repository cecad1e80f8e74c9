package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AsemElenawy/simtool-Nanohub/internal/config"
	"github.com/AsemElenawy/simtool-Nanohub/internal/logging"
	"github.com/AsemElenawy/simtool-Nanohub/internal/server"
	"github.com/AsemElenawy/simtool-Nanohub/internal/server/routes"
	"github.com/AsemElenawy/simtool-Nanohub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	cacheRoot   string
	port        int
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

const shutdownTimeout = 10 * time.Second

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Server)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["storage_path"] = cfg.Server.StoragePath
		fields["listen_addr"] = cfg.Server.ListenAddr()
		fields["auth"] = cfg.Server.AuthMode()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序为“配置 → 磁盘缓存/目录扫描/指标 → Fiber server”，
	// 所有请求共享同一份 Store 与目录缓存。
	rt, err := server.Bootstrap(cfg.Server, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "%v\n", err)
		return 1
	}
	defer rt.Close()

	fields := logging.BaseFields("startup", opts.configPath)
	fields["storage_path"] = rt.Store.Root()
	fields["listen_addr"] = cfg.Server.ListenAddr()
	fields["auth"] = cfg.Server.AuthMode()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := startHTTPServer(ctx, cfg.Server, rt, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig 读取配置文件，再叠加 -cache-root / -port 覆盖项并重新校验。
func loadConfig(opts cliOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.cacheRoot == "" && opts.port == 0 {
		return cfg, nil
	}
	if opts.cacheRoot != "" {
		abs, err := filepath.Abs(opts.cacheRoot)
		if err != nil {
			return nil, fmt.Errorf("无法解析缓存目录: %w", err)
		}
		cfg.Server.StoragePath = abs
	}
	if opts.port != 0 {
		cfg.Server.ListenPort = opts.port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet(version.Name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		cacheRoot  string
		port       int
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（可被 SIMTOOL_CACHE_CONFIG 覆盖，缺省仅使用默认值与环境变量）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.StringVar(&cacheRoot, "cache-root", "", "覆盖缓存根目录")
	fs.IntVar(&port, "port", 0, "覆盖监听端口")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("SIMTOOL_CACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		cacheRoot:   cacheRoot,
		port:        port,
	}, nil
}

func startHTTPServer(ctx context.Context, cfg config.ServerConfig, rt *server.Runtime, logger *logrus.Logger) error {
	app, err := server.NewApp(server.AppOptions{
		Logger:    logger,
		Metrics:   rt.Metrics,
		AuthToken: cfg.AuthToken,
		BodyLimit: cfg.BodyLimit,
	})
	if err != nil {
		return err
	}
	routes.RegisterAPIRoutes(app, routes.APIDeps{
		Store:   rt.Store,
		Catalog: rt.Catalog,
		Logger:  logger,
		Metrics: rt.Metrics,
	})
	routes.RegisterHealthRoutes(app, rt.Metrics)
	routes.RegisterDashboardRoutes(app, routes.DashboardDeps{
		Catalog:      rt.Catalog,
		Root:         rt.Store.Root(),
		Logger:       logger,
		AuthRequired: cfg.AuthToken != "",
	})

	addr := cfg.ListenAddr()
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"addr":   addr,
	}).Info("Fiber 服务启动")

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.WithFields(logrus.Fields{"action": "shutdown"}).Info("收到退出信号，停止服务")
		return app.ShutdownWithTimeout(shutdownTimeout)
	}
}
