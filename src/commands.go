// commands.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"TitanicExplorer/src/config"
	"TitanicExplorer/src/dataset"
	"TitanicExplorer/src/datasource"
	"TitanicExplorer/src/datasource/file"
	"TitanicExplorer/src/metrics"
	"TitanicExplorer/src/processor"
	"TitanicExplorer/src/render"
	"TitanicExplorer/src/storage"
	"TitanicExplorer/src/utils"
	"TitanicExplorer/src/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard web server",
	RunE:  runServe,
}

var (
	reopenPID int
	reopenCmd = &cobra.Command{
		Use:   "reopen-logs",
		Short: "Ask a running server to reopen its log file",
		Long:  `Send SIGHUP to a running serve process after the log file was rotated externally.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := signalReopen(reopenPID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已向进程 %d 发送 SIGHUP\n", reopenPID)
			return nil
		},
	}
)

var (
	tableFlags selectionFlags
	tableLimit int
	tableCmd   = &cobra.Command{
		Use:   "table",
		Short: "Print the filtered passenger table",
		RunE:  runTable,
	}
)

var (
	renderFlags  selectionFlags
	renderFormat string
	renderOut    string
	renderCmd    = &cobra.Command{
		Use:   "render",
		Short: "Render one chart to a PNG or HTML file",
		RunE:  runRender,
	}
)

var (
	exportFlags selectionFlags
	exportOut   string
	exportCmd   = &cobra.Command{
		Use:   "export",
		Short: "Export the filtered data and chart data to an Excel workbook",
		RunE:  runExport,
	}
)

func init() {
	tableFlags.register(tableCmd)
	tableCmd.Flags().IntVar(&tableLimit, "limit", 20, "最多显示行数，0 表示全部")

	renderFlags.register(renderCmd)
	renderCmd.Flags().StringVar(&renderFormat, "format", "png", "输出格式: png 或 html")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "输出文件，缺省为 <kind>.<format>，- 表示标准输出")

	exportFlags.register(exportCmd)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "titanic.xlsx", "输出文件")

	reopenCmd.Flags().IntVar(&reopenPID, "pid", 0, "serve 进程号")
	_ = reopenCmd.MarkFlagRequired("pid")

	rootCmd.AddCommand(serveCmd, tableCmd, renderCmd, exportCmd, reopenCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, dcfg, err := loadConfig()
	if err != nil {
		return err
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer logger.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	loader := datasource.NewLoader(cfg, dcfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t1 := time.Now()
	ds, err := loader.Load(ctx)
	if err != nil {
		m.DatasetLoadFailed()
		logger.Fatal(fmt.Sprintf("加载数据集失败(%s): %v", loader.Location(), err))
		return err
	}
	m.DatasetLoaded(ds.Len(), ds.LoadedAt())
	logger.Info(fmt.Sprintf("数据集已加载: %s, %d 行, 耗时 %v", loader.Location(), ds.Len(), time.Since(t1)))

	holder := dataset.NewHolder(ds)
	reload := func() {
		next, err := loader.Load(ctx)
		if err != nil {
			// 保留旧数据集继续服务
			m.DatasetLoadFailed()
			logger.Error(fmt.Sprintf("重新加载数据集失败: %v", err))
			return
		}
		holder.Set(next)
		m.DatasetLoaded(next.Len(), next.LoadedAt())
		logger.Info(fmt.Sprintf("数据集已重新加载: %d 行", next.Len()))
	}

	// 设置定时任务
	c := cron.New()
	if interval := time.Duration(cfg.Refresh.Interval); interval > 0 && !loader.IsLocal() {
		cronSpec := fmt.Sprintf("@every %s", interval)
		if err := c.AddFunc(cronSpec, reload); err != nil {
			return fmt.Errorf("创建刷新任务失败: %w", err)
		}
		logger.Info(fmt.Sprintf("远程数据集刷新间隔: %v", interval))
	}
	maxSize := cfg.LogMaxSize
	if err := c.AddFunc("@every 1m", func() {
		rotated, err := logger.CheckRotate(maxSize)
		if err != nil {
			logger.Error(err.Error())
			return
		}
		if rotated {
			logger.Info("日志文件已轮转")
		}
	}); err != nil {
		return fmt.Errorf("创建日志轮转任务失败: %w", err)
	}
	c.Start()
	defer c.Stop()

	srv := web.NewServer(holder, cfg, logger, m, prometheus.DefaultGatherer)
	httpServer := web.NewHTTPServer(cfg.Server.Addr, srv.Routes())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(fmt.Sprintf("面板服务已启动: %s，按Ctrl+C退出", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务异常: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		// SIGHUP 时重新打开日志文件，配合外部日志轮转
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				if err := logger.Reopen(); err != nil {
					logger.Error(err.Error())
					continue
				}
				logger.Info("日志文件已重新打开")
			}
		}
	})
	if cfg.Refresh.Watch && loader.IsLocal() {
		monitor, err := file.NewFileMonitor(loader.Location())
		if err != nil {
			return err
		}
		g.Go(func() error {
			return monitor.Watch(ctx, func(path string) {
				logger.Info("检测到数据文件变更: " + path)
				reload()
			})
		})
	}

	err = g.Wait()
	logger.Info("面板服务已停止")
	return err
}

// signalReopen 向 serve 进程发送 SIGHUP
func signalReopen(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("无效的进程号: %d", pid)
	}
	if err := syscall.Kill(pid, syscall.SIGHUP); err != nil {
		return fmt.Errorf("发送 SIGHUP 失败: %w", err)
	}
	return nil
}

// loadView 加载数据集并按命令行条件筛选
func loadView(ctx context.Context, cmd *cobra.Command, flags *selectionFlags) (dataframe.DataFrame, processor.Kind, *config.Config, error) {
	cfg, dcfg, err := loadConfig()
	if err != nil {
		return dataframe.DataFrame{}, "", nil, err
	}
	sel, kind, err := flags.resolve(cmd, cfg)
	if err != nil {
		return dataframe.DataFrame{}, "", nil, err
	}
	ds, err := datasource.NewLoader(cfg, dcfg).Load(ctx)
	if err != nil {
		return dataframe.DataFrame{}, "", nil, err
	}
	view, err := sel.Apply(ds.Frame())
	return view, kind, cfg, err
}

func runTable(cmd *cobra.Command, args []string) error {
	view, _, _, err := loadView(cmd.Context(), cmd, &tableFlags)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), render.Table(view, tableLimit))
	return err
}

func runRender(cmd *cobra.Command, args []string) error {
	var write func(io.Writer, processor.Chart) error
	switch renderFormat {
	case "png":
		write = render.PNG
	case "html":
		write = render.HTML
	default:
		return fmt.Errorf("不支持的输出格式: %q", renderFormat)
	}

	view, kind, cfg, err := loadView(cmd.Context(), cmd, &renderFlags)
	if err != nil {
		return err
	}
	chart, err := processor.Compute(kind, view, processor.WithBins(cfg.Defaults.Bins))
	if err != nil {
		return err
	}

	out := renderOut
	if out == "" {
		out = string(kind) + "." + renderFormat
	}
	if out == "-" {
		return write(cmd.OutOrStdout(), chart)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("创建输出文件失败: %w", err)
	}
	if err := write(f, chart); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s 已保存到 %s\n", chart.Info().Title, out)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	view, kind, cfg, err := loadView(cmd.Context(), cmd, &exportFlags)
	if err != nil {
		return err
	}
	chart, err := processor.Compute(kind, view, processor.WithBins(cfg.Defaults.Bins))
	if err != nil {
		return err
	}
	data := utils.ChartData{Title: chart.Info().Title, Records: chart.Records()}
	if err := utils.SaveToExcel(view, data, exportOut); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d 行已导出到 %s\n", view.Nrow(), exportOut)
	return nil
}
