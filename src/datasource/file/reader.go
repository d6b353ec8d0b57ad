// reader.go
package file

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"TitanicExplorer/src/dataset"
)

// ErrNoSheet xlsx 中找不到指定工作表
var ErrNoSheet = errors.New("excel文件中没有指定工作表")

// Decode 按字符集名称(如 gbk、latin1)把输入转换为 UTF-8，空值或 utf-8 时原样返回
func Decode(r io.Reader, charset string) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" || name == "utf-8" || name == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("不支持的字符集 %q: %w", charset, err)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// ReadCSV 将 CSV 内容读取为 DataFrame，aliases 见 dataset.LoadOptions
func ReadCSV(r io.Reader, aliases map[string]string) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r, dataset.LoadOptions(aliases)...)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析CSV失败: %w", df.Err)
	}
	return df, nil
}

// ReadXLSX 将 xlsx 二进制内容中的工作表读取为 DataFrame
// 参数:
//
//	data: xlsx 文件内容
//	sheetName: 工作表名称，为空时取第一个工作表
//	headerRow: 标题行位置(从0开始)，之后的行为数据
//	aliases: 标准列名 -> 数据源列名
func ReadXLSX(data []byte, sheetName string, headerRow int, aliases map[string]string) (dataframe.DataFrame, error) {
	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx 打开失败: %w", err)
	}

	// 2. 获取工作表
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, ErrNoSheet
	}
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("%w: %s", ErrNoSheet, sheetName)
		}
		sheet = s
	}

	// 3. 转换为Gota DataFrame
	records, err := sheetRecords(sheet, headerRow)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	df := dataframe.LoadRecords(records, dataset.LoadOptions(aliases)...)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("转换为dataframe失败: %w", df.Err)
	}
	return df, nil
}

// sheetRecords 将xlsx.Sheet转换为二维字符串表，首行为标题
func sheetRecords(sheet *xlsx.Sheet, headerRow int) ([][]string, error) {
	if headerRow < 0 || len(sheet.Rows) <= headerRow {
		return nil, fmt.Errorf("工作表 %s 没有标题行", sheet.Name)
	}

	// 获取列名
	var headers []string
	for _, cell := range sheet.Rows[headerRow].Cells {
		headers = append(headers, strings.TrimSpace(cell.String()))
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("工作表 %s 标题行为空", sheet.Name)
	}

	records := make([][]string, 0, len(sheet.Rows)-headerRow)
	records = append(records, headers)

	// 填充数据(标题行之后)，短行补空值
	for _, row := range sheet.Rows[headerRow+1:] {
		if row == nil {
			continue
		}
		record := make([]string, len(headers))
		empty := true
		for i, cell := range row.Cells {
			if i < len(headers) { // 确保不超出列数范围
				record[i] = cell.String()
				if record[i] != "" {
					empty = false
				}
			}
		}
		if empty {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Sniff 根据内容判断是否为 xlsx(zip 文件头)
func Sniff(data []byte) string {
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return "xlsx"
	}
	return "csv"
}
