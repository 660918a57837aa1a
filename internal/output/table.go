package output

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// TableFormatter formats output as a table
type TableFormatter struct {
	// Fields specifies which fields to include (empty = all fields)
	Fields []string
	// FieldLabels provides custom labels for fields, keyed by json name
	FieldLabels map[string]string
}

// Write outputs the data as a table
func (f *TableFormatter) Write(w io.Writer, data interface{}) error {
	val := reflect.ValueOf(data)
	for val.Kind() == reflect.Ptr && !val.IsNil() {
		val = val.Elem()
	}
	if val.Kind() != reflect.Slice {
		val = reflect.ValueOf([]interface{}{data})
	}
	if val.Len() == 0 {
		fmt.Fprintln(w, "No items found")
		return nil
	}

	first := reflect.Indirect(reflect.ValueOf(val.Index(0).Interface()))
	headers := f.getHeaders(first)
	if len(headers) == 0 {
		fmt.Fprintln(w, "No items found")
		return nil
	}

	displayHeaders := make([]string, len(headers))
	for i, h := range headers {
		if label, ok := f.FieldLabels[h]; ok {
			displayHeaders[i] = label
		} else {
			displayHeaders[i] = strings.ToUpper(strings.ReplaceAll(h, "_", " "))
		}
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(displayHeaders)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	for i := 0; i < val.Len(); i++ {
		item := reflect.ValueOf(val.Index(i).Interface())
		row := make([]string, len(headers))
		for j, h := range headers {
			row[j] = formatValue(getFieldValue(item, h))
		}
		table.Append(row)
	}

	table.Render()
	return nil
}

func (f *TableFormatter) getHeaders(val reflect.Value) []string {
	if len(f.Fields) > 0 {
		return f.Fields
	}
	switch val.Kind() {
	case reflect.Struct:
		t := val.Type()
		headers := make([]string, 0, val.NumField())
		for i := 0; i < val.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			if tag := jsonTag(field); tag != "" && tag != "-" {
				headers = append(headers, tag)
			}
		}
		return headers
	default:
		return []string{"value"}
	}
}

func formatValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return ""
	}
	if t, ok := v.(time.Time); ok {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%v", v)
}

func jsonTag(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return ""
	}
	return strings.Split(tag, ",")[0]
}

// getFieldValue looks up a struct field by Go name or json tag.
func getFieldValue(v reflect.Value, name string) interface{} {
	v = reflect.Indirect(v)
	if !v.IsValid() {
		return nil
	}
	if v.Kind() != reflect.Struct {
		if name == "value" {
			return v.Interface()
		}
		return nil
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Name == name || jsonTag(field) == name {
			return v.Field(i).Interface()
		}
	}
	return nil
}

// WriteError writes an error message
func WriteError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
}
