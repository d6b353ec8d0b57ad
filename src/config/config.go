package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// 默认数据源：泰坦尼克号乘客数据集
const DefaultSourceURL = "https://raw.githubusercontent.com/dawnmarie-gumagay/MIDTERM_IE3/main/titanic_dataset.csv"

// Config 结构体定义了应用程序的配置结构
type Config struct {
	Source struct {
		URL       string   `json:"url"`        // 远程数据集地址
		Path      string   `json:"path"`       // 本地数据集路径(优先于URL)
		Format    string   `json:"format"`     // csv 或 xlsx
		SheetName string   `json:"sheet_name"` // xlsx 工作表名称
		HeaderRow int      `json:"header_row"` // xlsx 标题行(从0开始)
		Encoding  string   `json:"encoding"`   // 数据源字符集，如 gbk
		Timeout   Duration `json:"timeout"`    // 远程获取超时时间
	} `json:"source"`

	Server struct {
		Addr       string `json:"addr"`        // 监听地址
		TableLimit int    `json:"table_limit"` // 页面表格最多显示行数，0 表示全部
	} `json:"server"`

	Defaults struct {
		AgeLo   int    `json:"age_lo"`  // 年龄范围下界
		AgeHi   int    `json:"age_hi"`  // 年龄范围上界
		Classes []int  `json:"classes"` // 默认选中的舱位等级
		Kind    string `json:"kind"`    // 默认图表类型
		Bins    int    `json:"bins"`    // 直方图分箱数
	} `json:"defaults"`

	Refresh struct {
		Interval Duration `json:"interval"` // 远程数据集刷新间隔，0 表示不刷新
		Watch    bool     `json:"watch"`    // 本地数据集变更时自动重新加载
	} `json:"refresh"`

	LogName    string `json:"log_name"`
	LogMaxSize string `json:"log_max_size"`
}

// DataConfig 数据列映射配置
type DataConfig struct {
	Columns map[string]string `json:"columns"` // 逻辑字段 -> 数据集列名
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	loadErr            error // 首次加载的错误，之后的调用同样返回
	mu                 sync.RWMutex
)

// LoadConfig 只加载一次配置文件，之后返回同一实例(或同一错误)
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	once.Do(func() {
		instance, dataConfigInstance, loadErr = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, loadErr
}

// Default 返回全部使用默认值的配置
func Default() (*Config, *DataConfig) {
	cfg := &Config{}
	cfg.applyDefaults()
	dcfg := &DataConfig{}
	dcfg.applyDefaults()
	return cfg, dcfg
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	cfg.applyDefaults()
	dcfg.applyDefaults()
	return cfg, dcfg, nil
}

// readFile 读取配置文件，文件不存在时返回 nil 以使用默认值
func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if len(data) > 0 {
		if err := json.Unmarshal(data, &cfg); err != nil {
			errChan <- fmt.Errorf("解析Config失败: %w", err)
			return
		}
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if len(data) > 0 {
		if err := json.Unmarshal(data, &dcfg); err != nil {
			errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
			return
		}
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

func (c *Config) applyDefaults() {
	if c.Source.URL == "" && c.Source.Path == "" {
		c.Source.URL = DefaultSourceURL
	}
	if c.Source.Format == "" {
		c.Source.Format = "csv"
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = Duration(30 * time.Second)
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Defaults.AgeLo == 0 && c.Defaults.AgeHi == 0 {
		c.Defaults.AgeLo, c.Defaults.AgeHi = 10, 50
	}
	if c.Defaults.Classes == nil {
		c.Defaults.Classes = []int{1, 2, 3}
	}
	if c.Defaults.Kind == "" {
		c.Defaults.Kind = "survival-by-class"
	}
	if c.Defaults.Bins <= 0 {
		c.Defaults.Bins = 20
	}
	if c.LogMaxSize == "" {
		c.LogMaxSize = "10 * 1024 * 1024"
	}
}

func (dc *DataConfig) applyDefaults() {
	defaults := map[string]string{
		"id":       "PassengerId",
		"survived": "Survived",
		"pclass":   "Pclass",
		"sex":      "Sex",
		"age":      "Age",
		"fare":     "Fare",
		"sibsp":    "SibSp",
		"parch":    "Parch",
	}
	if dc.Columns == nil {
		dc.Columns = make(map[string]string, len(defaults))
	}
	for k, v := range defaults {
		if dc.Columns[k] == "" {
			dc.Columns[k] = v
		}
	}
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// GetColumn 返回逻辑字段对应的列名
func (dc *DataConfig) GetColumn(field string) string {
	mu.RLock()
	defer mu.RUnlock()
	return dc.Columns[field]
}
