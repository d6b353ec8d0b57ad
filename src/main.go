package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"TitanicExplorer/src/config"
	"TitanicExplorer/src/processor"
)

const (
	configFile     = "config.json"
	dataConfigFile = "dataconfig.json"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "titanic",
	Short: "Titanic data exploration dashboard",
	Long: `Explore the factors affecting survival on the Titanic.

Serve the interactive dashboard, or render a single chart, the filtered
table or an Excel export straight from the command line.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "./config", "配置文件目录")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *config.DataConfig, error) {
	cfg, dcfg, err := config.LoadConfig(configDir, configFile, dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	return cfg, dcfg, nil
}

// selectionFlags 命令行中的筛选条件
type selectionFlags struct {
	ageLo   int
	ageHi   int
	classes string
	kind    string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.ageLo, "age-lo", -1, "年龄范围下界，缺省取配置")
	cmd.Flags().IntVar(&f.ageHi, "age-hi", -1, "年龄范围上界，缺省取配置")
	cmd.Flags().StringVar(&f.classes, "class", "", "舱位等级，逗号分隔，如 1,3")
	cmd.Flags().StringVar(&f.kind, "kind", "", "图表类型")
}

// resolve 合并配置中的缺省值，得到校验过的筛选条件和图表类型
func (f *selectionFlags) resolve(cmd *cobra.Command, cfg *config.Config) (processor.Selection, processor.Kind, error) {
	sel := processor.Selection{
		AgeLo:   cfg.Defaults.AgeLo,
		AgeHi:   cfg.Defaults.AgeHi,
		Classes: append([]int(nil), cfg.Defaults.Classes...),
	}
	if cmd.Flags().Changed("age-lo") {
		sel.AgeLo = f.ageLo
	}
	if cmd.Flags().Changed("age-hi") {
		sel.AgeHi = f.ageHi
	}
	if cmd.Flags().Changed("class") {
		classes, err := parseClasses(f.classes)
		if err != nil {
			return sel, "", err
		}
		sel.Classes = classes
	}

	kind := f.kind
	if kind == "" {
		kind = cfg.Defaults.Kind
	}
	k, err := processor.ParseKind(kind)
	if err != nil {
		return sel, "", err
	}
	return sel, k, sel.Validate()
}

func parseClasses(s string) ([]int, error) {
	out := []int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", processor.ErrInvalidClass, part)
		}
		out = append(out, c)
	}
	return out, nil
}
