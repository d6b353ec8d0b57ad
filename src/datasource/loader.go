// loader.go
package datasource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"

	"TitanicExplorer/src/config"
	"TitanicExplorer/src/dataset"
	"TitanicExplorer/src/datasource/file"
	"TitanicExplorer/src/datasource/remote"
)

// 加载失败的两类原因
var (
	ErrUnreachable = errors.New("数据源无法访问")
	ErrMalformed   = errors.New("数据源格式错误")
)

// Fetcher 获取远程内容
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Loader 根据配置一次性加载数据集
type Loader struct {
	URL       string
	Path      string
	Format    string // csv、xlsx，为空时根据内容判断
	SheetName string
	HeaderRow int
	Encoding  string
	Aliases   map[string]string // 标准列名 -> 数据源列名

	fetcher Fetcher
}

// NewLoader 从配置创建 Loader
func NewLoader(cfg *config.Config, dcfg *config.DataConfig) *Loader {
	aliases := map[string]string{
		dataset.ColID:       dcfg.GetColumn("id"),
		dataset.ColSurvived: dcfg.GetColumn("survived"),
		dataset.ColPclass:   dcfg.GetColumn("pclass"),
		dataset.ColSex:      dcfg.GetColumn("sex"),
		dataset.ColAge:      dcfg.GetColumn("age"),
		dataset.ColFare:     dcfg.GetColumn("fare"),
		dataset.ColSibSp:    dcfg.GetColumn("sibsp"),
		dataset.ColParch:    dcfg.GetColumn("parch"),
	}
	return &Loader{
		URL:       cfg.Source.URL,
		Path:      cfg.Source.Path,
		Format:    cfg.Source.Format,
		SheetName: cfg.Source.SheetName,
		HeaderRow: cfg.Source.HeaderRow,
		Encoding:  cfg.Source.Encoding,
		Aliases:   aliases,
		fetcher:   remote.NewClient(time.Duration(cfg.Source.Timeout)),
	}
}

// WithFetcher 替换远程获取实现
func (l *Loader) WithFetcher(f Fetcher) *Loader {
	l.fetcher = f
	return l
}

// Location 返回数据源位置，本地路径优先
func (l *Loader) Location() string {
	if l.Path != "" {
		return l.Path
	}
	return l.URL
}

// IsLocal 数据源是否为本地文件
func (l *Loader) IsLocal() bool {
	return l.Path != ""
}

// Load 获取并解析数据集，失败时返回包装了 ErrUnreachable 或 ErrMalformed 的错误
func (l *Loader) Load(ctx context.Context) (*dataset.Dataset, error) {
	location := l.Location()
	if location == "" {
		return nil, fmt.Errorf("%w: 未配置数据源", ErrUnreachable)
	}

	data, err := l.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, location, err)
	}

	df, err := l.parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, location, err)
	}

	ds, err := dataset.New(dataset.Canonicalize(df, l.Aliases), location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, location, err)
	}
	return ds, nil
}

func (l *Loader) read(ctx context.Context) ([]byte, error) {
	if l.Path != "" {
		return os.ReadFile(l.Path)
	}
	if l.fetcher == nil {
		return nil, errors.New("未配置远程获取客户端")
	}
	return l.fetcher.Fetch(ctx, l.URL)
}

func (l *Loader) parse(data []byte) (dataframe.DataFrame, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return dataframe.DataFrame{}, errors.New("内容为空")
	}

	format := strings.ToLower(l.Format)
	if format == "" {
		format = file.Sniff(data)
	}

	switch format {
	case "csv":
		r, err := file.Decode(bytes.NewReader(data), l.Encoding)
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		return file.ReadCSV(r, l.Aliases)
	case "xlsx":
		return file.ReadXLSX(data, l.SheetName, l.HeaderRow, l.Aliases)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("不支持的数据格式 %q", l.Format)
	}
}
