// dataset.go
package dataset

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"TitanicExplorer/src/utils"
)

// 数据集使用的标准列名
const (
	ColID       = "PassengerId"
	ColSurvived = "Survived"
	ColPclass   = "Pclass"
	ColSex      = "Sex"
	ColAge      = "Age"
	ColFare     = "Fare"
	ColSibSp    = "SibSp"
	ColParch    = "Parch"
)

// RequiredColumns 筛选和图表计算必需的列
var RequiredColumns = []string{ColSurvived, ColPclass, ColSex, ColAge, ColFare, ColSibSp, ColParch}

// ColumnTypes 加载时强制指定的列类型，缺失值统一为 NaN
var ColumnTypes = map[string]series.Type{
	ColID:       series.Int,
	ColSurvived: series.Int,
	ColPclass:   series.Int,
	ColSex:      series.String,
	ColAge:      series.Float,
	ColFare:     series.Float,
	ColSibSp:    series.Int,
	ColParch:    series.Int,
}

// NaNValues 视为缺失值的字符串
var NaNValues = []string{"", "NA", "NaN", "nan", "<nil>"}

// LoadOptions 返回读取数据集时使用的 gota 选项
// aliases 为标准列名 -> 数据源列名，别名列同样按标准列的类型解析
func LoadOptions(aliases map[string]string) []dataframe.LoadOption {
	types := make(map[string]series.Type, len(ColumnTypes)*2)
	for col, t := range ColumnTypes {
		types[col] = t
		if alias := aliases[col]; alias != "" {
			types[alias] = t
		}
	}
	return []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(NaNValues),
		dataframe.WithTypes(types),
	}
}

// Canonicalize 把数据源列名重命名为标准列名
func Canonicalize(df dataframe.DataFrame, aliases map[string]string) dataframe.DataFrame {
	names := df.Names()
	for col, alias := range aliases {
		if alias == "" || alias == col || utils.Contains(names, col) || !utils.Contains(names, alias) {
			continue
		}
		df = df.Rename(col, alias)
	}
	return df
}

// LoadRecords 从二维字符串表(首行为标题)构建 DataFrame
func LoadRecords(records [][]string) dataframe.DataFrame {
	return dataframe.LoadRecords(records, LoadOptions(nil)...)
}

// Passenger 乘客记录
type Passenger struct {
	ID       int      `json:"id"`
	Survived bool     `json:"survived"`
	Pclass   int      `json:"pclass"`
	Sex      string   `json:"sex"`
	Age      *float64 `json:"age"` // 缺失时为 nil
	Fare     *float64 `json:"fare"`
	SibSp    int      `json:"sibsp"`
	Parch    int      `json:"parch"`
}

// Dataset 加载后只读的乘客数据集
type Dataset struct {
	df       dataframe.DataFrame
	source   string
	loadedAt time.Time
	ageMin   int
	ageMax   int
}

// New 校验必需列并创建数据集
func New(df dataframe.DataFrame, source string) (*Dataset, error) {
	if df.Err != nil {
		return nil, fmt.Errorf("数据集解析失败: %w", df.Err)
	}
	for _, col := range RequiredColumns {
		if !utils.HasColumn(df, col) {
			return nil, fmt.Errorf("数据集缺少必需列 %q", col)
		}
	}

	ds := &Dataset{df: df, source: source, loadedAt: time.Now()}
	ds.ageMin, ds.ageMax = ageBounds(df)
	return ds, nil
}

// Frame 返回底层 DataFrame，调用方只能读取
func (d *Dataset) Frame() dataframe.DataFrame { return d.df }

// Len 返回记录数
func (d *Dataset) Len() int { return d.df.Nrow() }

// Source 返回数据来源
func (d *Dataset) Source() string { return d.source }

// LoadedAt 返回加载时间
func (d *Dataset) LoadedAt() time.Time { return d.loadedAt }

// AgeBounds 返回观测到的最小/最大年龄(截断取整)，没有有效年龄时为 0,0
func (d *Dataset) AgeBounds() (int, int) { return d.ageMin, d.ageMax }

func ageBounds(df dataframe.DataFrame) (int, int) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range df.Col(ColAge).Float() {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return 0, 0
	}
	return int(lo), int(hi)
}

// Records 将 DataFrame 转换为乘客记录，保持行顺序
func Records(df dataframe.DataFrame) []Passenger {
	n := df.Nrow()
	out := make([]Passenger, n)
	if n == 0 {
		return out
	}

	var ids []float64
	if utils.HasColumn(df, ColID) {
		ids = df.Col(ColID).Float()
	}
	survived := df.Col(ColSurvived).Float()
	pclass := df.Col(ColPclass).Float()
	sex := df.Col(ColSex)
	age := df.Col(ColAge).Float()
	fare := df.Col(ColFare).Float()
	sibsp := df.Col(ColSibSp).Float()
	parch := df.Col(ColParch).Float()

	for i := 0; i < n; i++ {
		p := Passenger{
			ID:       i + 1,
			Survived: survived[i] == 1,
			Pclass:   intOrZero(pclass[i]),
			Age:      optional(age[i]),
			Fare:     optional(fare[i]),
			SibSp:    intOrZero(sibsp[i]),
			Parch:    intOrZero(parch[i]),
		}
		if ids != nil && !math.IsNaN(ids[i]) {
			p.ID = int(ids[i])
		}
		if el := sex.Elem(i); !el.IsNA() {
			p.Sex = el.String()
		}
		out[i] = p
	}
	return out
}

func optional(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func intOrZero(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(v)
}


// Holder 线程安全地持有当前数据集，重新加载时整体替换
type Holder struct {
	ds *Dataset
	mu sync.RWMutex
}

// NewHolder 创建持有初始数据集的 Holder
func NewHolder(ds *Dataset) *Holder {
	return &Holder{ds: ds}
}

// Get 获取当前数据集(线程安全)
func (h *Holder) Get() *Dataset {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ds
}

// Set 替换当前数据集(线程安全)
func (h *Holder) Set(ds *Dataset) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ds = ds
}
