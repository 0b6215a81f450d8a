// SPDX-License-Identifier: MPL-2.0

package clrmeta

// table is an ECMA-335 metadata table number (II.22).
type table uint8

const (
	tModule                 table = 0x00
	tTypeRef                table = 0x01
	tTypeDef                table = 0x02
	tFieldPtr               table = 0x03
	tField                  table = 0x04
	tMethodPtr              table = 0x05
	tMethodDef              table = 0x06
	tParamPtr               table = 0x07
	tParam                  table = 0x08
	tInterfaceImpl          table = 0x09
	tMemberRef              table = 0x0A
	tConstant               table = 0x0B
	tCustomAttribute        table = 0x0C
	tFieldMarshal           table = 0x0D
	tDeclSecurity           table = 0x0E
	tClassLayout            table = 0x0F
	tFieldLayout            table = 0x10
	tStandAloneSig          table = 0x11
	tEventMap               table = 0x12
	tEventPtr               table = 0x13
	tEvent                  table = 0x14
	tPropertyMap            table = 0x15
	tPropertyPtr            table = 0x16
	tProperty               table = 0x17
	tMethodSemantics        table = 0x18
	tMethodImpl             table = 0x19
	tModuleRef              table = 0x1A
	tTypeSpec               table = 0x1B
	tImplMap                table = 0x1C
	tFieldRVA               table = 0x1D
	tEncLog                 table = 0x1E
	tEncMap                 table = 0x1F
	tAssembly               table = 0x20
	tAssemblyProcessor      table = 0x21
	tAssemblyOS             table = 0x22
	tAssemblyRef            table = 0x23
	tFile                   table = 0x26
	tExportedType           table = 0x27
	tManifestResource       table = 0x28
	tGenericParam           table = 0x2A
	tMethodSpec             table = 0x2B
	tGenericParamConstraint table = 0x2C

	maxTables = 64
)

// Heap size flags of the table stream header.
const (
	heapWideStrings = 0x01
	heapWideGUID    = 0x02
	heapWideBlob    = 0x04
	heapExtraData   = 0x40
)

type (
	// codedIndex describes a coded index: the number of tag bits and the
	// tables it may point into.
	codedIndex struct {
		bits   uint
		tables []table
	}

	// column returns the on-disk width in bytes of one column for a layout.
	column func(l *layout) int

	// layout carries what determines column widths: row counts and heap flags.
	layout struct {
		rows      [maxTables]uint32
		heapSizes uint8
	}
)

var (
	typeDefOrRef     = codedIndex{bits: 2, tables: []table{tTypeDef, tTypeRef, tTypeSpec}}
	hasConstant      = codedIndex{bits: 2, tables: []table{tField, tParam, tProperty}}
	hasFieldMarshal  = codedIndex{bits: 1, tables: []table{tField, tParam}}
	hasDeclSecurity  = codedIndex{bits: 2, tables: []table{tTypeDef, tMethodDef, tAssembly}}
	memberRefParent  = codedIndex{bits: 3, tables: []table{tTypeDef, tTypeRef, tModuleRef, tMethodDef, tTypeSpec}}
	hasSemantics     = codedIndex{bits: 1, tables: []table{tEvent, tProperty}}
	methodDefOrRef   = codedIndex{bits: 1, tables: []table{tMethodDef, tMemberRef}}
	memberForwarded  = codedIndex{bits: 1, tables: []table{tField, tMethodDef}}
	customAttribType = codedIndex{bits: 3, tables: []table{tMethodDef, tMemberRef}}
	resolutionScope  = codedIndex{bits: 2, tables: []table{tModule, tModuleRef, tAssemblyRef, tTypeRef}}
	hasCustomAttrib  = codedIndex{bits: 5, tables: []table{
		tMethodDef, tField, tTypeRef, tTypeDef, tParam, tInterfaceImpl, tMemberRef, tModule,
		tDeclSecurity, tProperty, tEvent, tStandAloneSig, tModuleRef, tTypeSpec, tAssembly,
		tAssemblyRef, tFile, tExportedType, tManifestResource, tGenericParam,
		tGenericParamConstraint, tMethodSpec,
	}}
)

func fixed(n int) column { return func(*layout) int { return n } }

var (
	u8pair = fixed(2)
	u16    = fixed(2)
	u32    = fixed(4)
)

func str(l *layout) int  { return l.heapWidth(heapWideStrings) }
func guid(l *layout) int { return l.heapWidth(heapWideGUID) }
func blob(l *layout) int { return l.heapWidth(heapWideBlob) }

func index(t table) column { return func(l *layout) int { return l.indexWidth(t) } }

func coded(c codedIndex) column { return func(l *layout) int { return l.codedWidth(c) } }

// schemas lists the columns of every table that can precede AssemblyRef in
// the table stream. Later tables never influence its offset.
var schemas = map[table][]column{
	tModule:            {u16, str, guid, guid, guid},
	tTypeRef:           {coded(resolutionScope), str, str},
	tTypeDef:           {u32, str, str, coded(typeDefOrRef), index(tField), index(tMethodDef)},
	tFieldPtr:          {index(tField)},
	tField:             {u16, str, blob},
	tMethodPtr:         {index(tMethodDef)},
	tMethodDef:         {u32, u16, u16, str, blob, index(tParam)},
	tParamPtr:          {index(tParam)},
	tParam:             {u16, u16, str},
	tInterfaceImpl:     {index(tTypeDef), coded(typeDefOrRef)},
	tMemberRef:         {coded(memberRefParent), str, blob},
	tConstant:          {u8pair, coded(hasConstant), blob},
	tCustomAttribute:   {coded(hasCustomAttrib), coded(customAttribType), blob},
	tFieldMarshal:      {coded(hasFieldMarshal), blob},
	tDeclSecurity:      {u16, coded(hasDeclSecurity), blob},
	tClassLayout:       {u16, u32, index(tTypeDef)},
	tFieldLayout:       {u32, index(tField)},
	tStandAloneSig:     {blob},
	tEventMap:          {index(tTypeDef), index(tEvent)},
	tEventPtr:          {index(tEvent)},
	tEvent:             {u16, str, coded(typeDefOrRef)},
	tPropertyMap:       {index(tTypeDef), index(tProperty)},
	tPropertyPtr:       {index(tProperty)},
	tProperty:          {u16, str, blob},
	tMethodSemantics:   {u16, index(tMethodDef), coded(hasSemantics)},
	tMethodImpl:        {index(tTypeDef), coded(methodDefOrRef), coded(methodDefOrRef)},
	tModuleRef:         {str},
	tTypeSpec:          {blob},
	tImplMap:           {u16, coded(memberForwarded), str, index(tModuleRef)},
	tFieldRVA:          {u32, index(tField)},
	tEncLog:            {u32, u32},
	tEncMap:            {u32},
	tAssembly:          {u32, u16, u16, u16, u16, u32, blob, str, str},
	tAssemblyProcessor: {u32},
	tAssemblyOS:        {u32, u32, u32},
	tAssemblyRef:       {u16, u16, u16, u16, u32, blob, str, str, blob},
}

func (l *layout) heapWidth(flag uint8) int {
	if l.heapSizes&flag != 0 {
		return 4
	}
	return 2
}

func (l *layout) indexWidth(t table) int {
	if l.rows[t] > 0xFFFF {
		return 4
	}
	return 2
}

func (l *layout) codedWidth(c codedIndex) int {
	limit := uint32(1) << (16 - c.bits)
	for _, t := range c.tables {
		if l.rows[t] >= limit {
			return 4
		}
	}
	return 2
}

// rowSize returns the width of one row of t.
func (l *layout) rowSize(t table) int {
	size := 0
	for _, col := range schemas[t] {
		size += col(l)
	}
	return size
}
