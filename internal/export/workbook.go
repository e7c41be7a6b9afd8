// Package export 将集合快照导出为 Excel 工作簿。
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Babylonias/adminnexus-portal/internal/domain"

	"github.com/xuri/excelize/v2"
)

const (
	UniversitySheet = "Universities"
	ClassroomSheet  = "Classrooms"
)

// UniversityHeader 大学表头
var UniversityHeader = []string{
	"ID",
	"Name",
	"Slug",
	"Address",
	"Latitude",
	"Longitude",
	"Description",
	"Created At",
	"Updated At",
}

// ClassroomHeader 教室表头
var ClassroomHeader = []string{
	"ID",
	"Name",
	"Slug",
	"University",
	"Capacity",
	"Status",
	"Equipment",
	"Latitude",
	"Longitude",
	"Main Image",
	"Annexes",
	"Description",
	"Created At",
	"Updated At",
}

type sheet struct {
	name    string
	headers []string
	widths  []float64
	rows    [][]interface{}
}

// Workbook 生成包含大学与教室两个工作表的 xlsx
// 教室的大学名称优先取内嵌摘要，其次按 university_id 在大学列表中查找
func Workbook(universities []domain.University, classrooms []domain.Classroom) ([]byte, error) {
	names := make(map[string]string, len(universities))
	for _, u := range universities {
		names[u.ID] = u.Name
	}

	sheets := []sheet{
		{
			name:    UniversitySheet,
			headers: UniversityHeader,
			widths:  []float64{38, 30, 30, 40, 12, 12, 50, 22, 22},
			rows:    universityRows(universities),
		},
		{
			name:    ClassroomSheet,
			headers: ClassroomHeader,
			widths:  []float64{38, 25, 25, 30, 10, 14, 40, 12, 12, 40, 40, 50, 22, 22},
			rows:    classroomRows(classrooms, names),
		},
	}

	f := excelize.NewFile()
	// Note: File must remain open during Write operation

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, s sheet) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	// 写入表头
	for col, header := range s.headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(s.name, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(s.name, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i, width := range s.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(s.name, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// 写入数据（从第2行开始）
	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+2, s.name, err)
		}
	}

	// 冻结表头
	if err := f.SetPanes(s.name, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}
	return nil
}

func universityRows(universities []domain.University) [][]interface{} {
	rows := make([][]interface{}, 0, len(universities))
	for _, u := range universities {
		lat, lng := coordinateCells(u.Coordinate)
		rows = append(rows, []interface{}{
			u.ID, u.Name, u.Slug, u.Address, lat, lng, u.Description, u.CreatedAt, u.UpdatedAt,
		})
	}
	return rows
}

func classroomRows(classrooms []domain.Classroom, universityNames map[string]string) [][]interface{} {
	rows := make([][]interface{}, 0, len(classrooms))
	for _, c := range classrooms {
		university := universityNames[c.UniversityID]
		if c.University != nil && c.University.Name != "" {
			university = c.University.Name
		}
		lat, lng := coordinateCells(c.Coordinate)
		rows = append(rows, []interface{}{
			c.ID,
			c.Name,
			c.Slug,
			university,
			c.Capacity,
			string(c.Status),
			strings.Join(c.Equipment, ", "),
			lat,
			lng,
			c.MainImage,
			strings.Join(c.Annexes, "\n"),
			c.Description,
			c.CreatedAt,
			c.UpdatedAt,
		})
	}
	return rows
}

// coordinateCells 坐标缺失时留空
func coordinateCells(c *domain.Coordinate) (interface{}, interface{}) {
	if c == nil {
		return "", ""
	}
	return c.Lat, c.Lng
}
