package utils

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

// 导出工作簿中的工作表名称
const (
	ViewSheet  = "View"
	ChartSheet = "Chart"
)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// ChartData 写入 Chart 工作表的内容，Records 第一行为标题
type ChartData struct {
	Title   string
	Records [][]string
}

// WriteExcel 把筛选结果和图表数据写成 xlsx 输出到 w
func WriteExcel(w io.Writer, view dataframe.DataFrame, chart ChartData) error {
	f, err := buildWorkbook(view, chart)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("写入Excel失败: %w", err)
	}
	return nil
}

// SaveToExcel 把筛选结果和图表数据保存为 xlsx 文件
func SaveToExcel(view dataframe.DataFrame, chart ChartData, filePath string) error {
	f, err := buildWorkbook(view, chart)
	if err != nil {
		return err
	}
	defer f.Close()

	// 保存文件
	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

func buildWorkbook(view dataframe.DataFrame, chart ChartData) (*excelize.File, error) {
	f := excelize.NewFile()

	// 默认工作表改名为 View
	if err := f.SetSheetName(f.GetSheetName(0), ViewSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("重命名工作表失败: %w", err)
	}
	if err := writeFrame(f, ViewSheet, view); err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.NewSheet(ChartSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("创建工作表失败: %w", err)
	}
	if err := writeChart(f, chart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeFrame(f *excelize.File, sheet string, df dataframe.DataFrame) error {
	// 写入列名
	colNames := df.Names()
	for i, name := range colNames {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("写入列名失败: %w", err)
		}
	}

	// 写入数据，缺失值保留为空单元格
	for colIdx, colName := range colNames {
		col := df.Col(colName)
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			el := col.Elem(rowIdx)
			if el.IsNA() {
				continue
			}
			val := el.Val()
			if v, ok := val.(float64); ok && math.IsNaN(v) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("写入数据失败: %w", err)
			}
		}
	}
	return nil
}

func writeChart(f *excelize.File, chart ChartData) error {
	if err := f.SetCellValue(ChartSheet, "A1", chart.Title); err != nil {
		return fmt.Errorf("写入图表标题失败: %w", err)
	}
	for i, rec := range chart.Records {
		row := make([]interface{}, len(rec))
		for j, s := range rec {
			// 数值按数字写入，便于在表格中继续计算
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				row[j] = v
			} else {
				row[j] = s
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		if err := f.SetSheetRow(ChartSheet, cell, &row); err != nil {
			return fmt.Errorf("写入图表数据失败: %w", err)
		}
	}
	return nil
}
