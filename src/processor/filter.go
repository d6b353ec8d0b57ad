// filter.go
package processor

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"TitanicExplorer/src/dataset"
	"TitanicExplorer/src/utils"
)

// 筛选条件错误
var (
	ErrInvalidRange = errors.New("年龄范围无效")
	ErrInvalidClass = errors.New("舱位等级无效")
)

// ValidClasses 可选的舱位等级
var ValidClasses = []int{1, 2, 3}

// Selection 用户选择的筛选条件
type Selection struct {
	AgeLo   int   `json:"age_lo"`
	AgeHi   int   `json:"age_hi"`
	Classes []int `json:"classes"` // 为空时结果为空
}

// Validate 校验年龄范围与舱位等级
func (s Selection) Validate() error {
	if s.AgeLo > s.AgeHi {
		return fmt.Errorf("%w: %d > %d", ErrInvalidRange, s.AgeLo, s.AgeHi)
	}
	for _, c := range s.Classes {
		if !utils.Contains(ValidClasses, c) {
			return fmt.Errorf("%w: %d", ErrInvalidClass, c)
		}
	}
	return nil
}

// Apply 依次按年龄和舱位筛选，返回保持原顺序的子集
func (s Selection) Apply(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := s.Validate(); err != nil {
		return dataframe.DataFrame{}, err
	}
	view := FilterAge(df, float64(s.AgeLo), float64(s.AgeHi))
	view = FilterClass(view, s.Classes)
	if view.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("筛选数据失败: %w", view.Err)
	}
	return view, nil
}

// FilterAge 保留 lo <= Age <= hi 的行，年龄缺失的行被排除
func FilterAge(df dataframe.DataFrame, lo, hi float64) dataframe.DataFrame {
	if df.Nrow() == 0 {
		return df
	}
	return df.Filter(dataframe.F{
		Colname:    dataset.ColAge,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			if el.IsNA() {
				return false
			}
			v := el.Float()
			return !math.IsNaN(v) && v >= lo && v <= hi
		},
	})
}

// FilterClass 保留舱位等级在 classes 中的行
func FilterClass(df dataframe.DataFrame, classes []int) dataframe.DataFrame {
	if df.Nrow() == 0 {
		return df
	}
	return df.Filter(dataframe.F{
		Colname:    dataset.ColPclass,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			if el.IsNA() {
				return false
			}
			v := el.Float()
			return v == math.Trunc(v) && utils.Contains(classes, int(v))
		},
	})
}
