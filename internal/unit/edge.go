package unit

import "fmt"

// ImportKind says what an edge pulls in from its requested unit.
type ImportKind int

const (
	ImportNone ImportKind = iota // nothing imported (side-effect or local export)
	ImportName                   // one named export
	ImportAll                    // every export (wildcard re-export)
	ImportUnit                   // the unit itself, as a namespace
)

// ExportKind says what an edge exposes from the declaring unit.
type ExportKind int

const (
	ExportNone ExportKind = iota
	ExportName
	ExportAll
)

type ImportRef struct {
	Kind ImportKind
	Name string // set only for ImportName
}

type ExportRef struct {
	Kind ExportKind
	Name string // set only for ExportName
}

// Edge is one normalized import/export/re-export declaration. Every surface
// form reduces to this 4-tuple:
//
//	module ns from "m"          {Request:m Imported:Unit Local:ns}
//	import "m"                  {Request:m}
//	import d from "m"           {Request:m Imported:Name(default) Local:d}
//	import {a as b} from "m"    {Request:m Imported:Name(a) Local:b}
//	export {a as b} from "m"    {Request:m Imported:Name(a) Exported:Name(b)}
//	export * from "m"           {Request:m Imported:All Exported:All}
//	export {a as b}             {Local:a Exported:Name(b)}
//	export default <expr>       {Local:*default* Exported:Name(default)}
type Edge struct {
	Request  string // external unit request, "" when purely local
	Imported ImportRef
	Local    string
	Exported ExportRef
}

// DefaultName is the export name used by default imports/exports.
const DefaultName = "default"

// DefaultLocal is the synthetic local binding behind "export default".
const DefaultLocal = "*default*"

func (e Edge) String() string {
	imp := ""
	switch e.Imported.Kind {
	case ImportName:
		imp = e.Imported.Name
	case ImportAll:
		imp = "*"
	case ImportUnit:
		imp = "@unit"
	}
	exp := ""
	switch e.Exported.Kind {
	case ExportName:
		exp = e.Exported.Name
	case ExportAll:
		exp = "*"
	}
	return fmt.Sprintf("edge{req:%q imp:%q local:%q exp:%q}", e.Request, imp, e.Local, exp)
}
