// table.go
package render

import (
	"fmt"
	"math"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#001f3f")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	oddStyle    = cellStyle.Foreground(lipgloss.Color("245"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#008080"))
	footerStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("241"))
)

// Headers 表格列名，与筛选结果的列一致(包括 Name、Cabin 等非计算列)
func Headers(df dataframe.DataFrame) []string {
	return df.Names()
}

// Rows 把筛选结果的全部列转换为字符串行，缺失值为空串，limit <= 0 时返回全部
func Rows(df dataframe.DataFrame, limit int) [][]string {
	n := df.Nrow()
	if limit > 0 && n > limit {
		n = limit
	}
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = make([]string, df.Ncol())
	}

	for j, name := range df.Names() {
		col := df.Col(name)
		if col.Type() == series.Float {
			for i, v := range col.Float()[:n] {
				if !math.IsNaN(v) {
					rows[i][j] = strconv.FormatFloat(v, 'f', -1, 64)
				}
			}
			continue
		}
		for i := 0; i < n; i++ {
			if el := col.Elem(i); !el.IsNA() {
				rows[i][j] = el.String()
			}
		}
	}
	return rows
}

// Table 用 lipgloss 渲染终端表格，末尾附带行数统计
func Table(df dataframe.DataFrame, limit int) string {
	rows := Rows(df, limit)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(Headers(df)...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row%2 == 1:
				return oddStyle
			default:
				return cellStyle
			}
		})

	footer := fmt.Sprintf("%d rows", df.Nrow())
	if len(rows) < df.Nrow() {
		footer = fmt.Sprintf("showing %d of %d rows", len(rows), df.Nrow())
	}
	return lipgloss.JoinVertical(lipgloss.Left, t.String(), footerStyle.Render(footer))
}
