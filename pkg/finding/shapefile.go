package finding

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jonas-p/go-shp"
)

// ZipSink collects findings and writes a zip archive on Close containing
// a point shapefile of the located findings plus a JSON report of every
// finding, located or not.
type ZipSink struct {
	mu       sync.Mutex
	w        io.WriteCloser
	findings []Finding
}

func NewZipSink(w io.WriteCloser) *ZipSink { return &ZipSink{w: w} }

func (s *ZipSink) Append(f Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings = append(s.findings, f)
	return nil
}

func (s *ZipSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := ExportZip(s.findings)
	if err != nil {
		s.w.Close()
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		s.w.Close()
		return fmt.Errorf("writing findings archive: %w", err)
	}
	return s.w.Close()
}

type reportRecord struct {
	Code        string   `json:"code"`
	Severity    string   `json:"severity"`
	Table       string   `json:"table"`
	ID          string   `json:"id"`
	TargetTable string   `json:"target_table,omitempty"`
	TargetID    string   `json:"target_id,omitempty"`
	Message     string   `json:"message"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Located     bool     `json:"located"`
}

// ExportZip renders findings as a zip archive with findings.json and, when
// any finding is located, the findings.shp/.shx/.dbf triple.
func ExportZip(findings []Finding) ([]byte, error) {
	var zipBuffer bytes.Buffer
	zipWriter := zip.NewWriter(&zipBuffer)

	records := make([]reportRecord, 0, len(findings))
	located := make([]Finding, 0, len(findings))
	for _, f := range findings {
		r := reportRecord{
			Code:     string(f.Code),
			Severity: string(f.Severity),
			Table:    f.Ref.Table,
			ID:       f.Ref.ID,
			Message:  f.Message,
			Located:  f.Located(),
		}
		if f.Target != nil {
			r.TargetTable = f.Target.Table
			r.TargetID = f.Target.ID
		}
		if f.Location != nil {
			x, y := f.Location.X, f.Location.Y
			r.X, r.Y = &x, &y
			located = append(located, f)
		}
		records = append(records, r)
	}

	jsonData, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding findings report: %w", err)
	}
	jsonFile, err := zipWriter.Create("findings.json")
	if err != nil {
		return nil, fmt.Errorf("creating report in zip: %w", err)
	}
	if _, err := jsonFile.Write(jsonData); err != nil {
		return nil, fmt.Errorf("writing report to zip: %w", err)
	}

	if len(located) > 0 {
		if err := addShapefileToZip(zipWriter, located); err != nil {
			return nil, fmt.Errorf("adding shapefile to zip: %w", err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("closing zip: %w", err)
	}
	return zipBuffer.Bytes(), nil
}

// addShapefileToZip writes the located findings as a point shapefile in a
// temp directory and copies its components into the archive.
func addShapefileToZip(zipWriter *zip.Writer, located []Finding) error {
	tempDir, err := os.MkdirTemp("", "findings_shp_")
	if err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	shapefilePath := filepath.Join(tempDir, "findings.shp")
	if err := writeFindingsShapefile(shapefilePath, located); err != nil {
		return err
	}

	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		filePath := strings.TrimSuffix(shapefilePath, ".shp") + ext
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			continue
		}
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("reading shapefile component %s: %w", ext, err)
		}
		zipFile, err := zipWriter.Create("findings" + ext)
		if err != nil {
			return fmt.Errorf("creating %s in zip: %w", ext, err)
		}
		if _, err := zipFile.Write(content); err != nil {
			return fmt.Errorf("writing %s to zip: %w", ext, err)
		}
	}
	return nil
}

func writeFindingsShapefile(path string, located []Finding) error {
	writer, err := shp.Create(path, shp.POINT)
	if err != nil {
		return fmt.Errorf("creating shapefile: %w", err)
	}
	defer writer.Close()

	// DBF column names are capped at ten characters.
	writer.SetFields([]shp.Field{
		shp.StringField("CODE", 40),
		shp.StringField("SEVERITY", 10),
		shp.StringField("TABLE", 30),
		shp.StringField("OBJECT_ID", 30),
		shp.StringField("TGT_TABLE", 30),
		shp.StringField("TGT_ID", 30),
		shp.StringField("MESSAGE", 120),
	})

	for row, f := range located {
		point := shp.Point{X: f.Location.X, Y: f.Location.Y}
		writer.Write(&point)
		writer.WriteAttribute(row, 0, string(f.Code))
		writer.WriteAttribute(row, 1, string(f.Severity))
		writer.WriteAttribute(row, 2, f.Ref.Table)
		writer.WriteAttribute(row, 3, f.Ref.ID)
		if f.Target != nil {
			writer.WriteAttribute(row, 4, f.Target.Table)
			writer.WriteAttribute(row, 5, f.Target.ID)
		} else {
			writer.WriteAttribute(row, 4, "")
			writer.WriteAttribute(row, 5, "")
		}
		writer.WriteAttribute(row, 6, truncate(f.Message, 120))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
