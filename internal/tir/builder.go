package tir

import (
	"fmt"

	"fortio.org/safecast"

	"ferro/internal/source"
)

// ModuleBuilder constructs typed modules programmatically. The type checker
// uses it when handing work to the verifier in-process; the test suites use
// it to assemble scenarios without a frontend.
//
// Every node gets an automatically allocated one-byte span in the current
// source file, in construction order, so diagnostic ordering in tests follows
// program order.
type ModuleBuilder struct {
	mod    Module
	file   source.FileID
	cursor uint32

	unitType   TypeID
	boolType   TypeID
	intType    TypeID
	stringType TypeID
}

func NewModuleBuilder(name string) *ModuleBuilder {
	return &ModuleBuilder{
		mod:        Module{Schema: SchemaVersion, Name: name},
		unitType:   NoTypeID,
		boolType:   NoTypeID,
		intType:    NoTypeID,
		stringType: NoTypeID,
	}
}

// AddSource embeds a source file and makes it current for span allocation.
func (b *ModuleBuilder) AddSource(path, content string) source.FileID {
	id, err := safecast.Conv[uint32](len(b.mod.Sources))
	if err != nil {
		panic(fmt.Errorf("source count overflow: %w", err))
	}
	b.mod.Sources = append(b.mod.Sources, SourceFile{Path: path, Content: []byte(content)})
	b.file = source.FileID(id)
	b.cursor = 0
	return b.file
}

func (b *ModuleBuilder) nextSpan() source.Span {
	sp := source.Span{File: b.file, Start: b.cursor, End: b.cursor + 1}
	b.cursor++
	return sp
}

func (b *ModuleBuilder) addType(t Type) TypeID {
	id := TypeID(len(b.mod.Types)) //nolint:gosec // arena sizes stay small
	b.mod.Types = append(b.mod.Types, t)
	return id
}

func (b *ModuleBuilder) UnitType() TypeID {
	if !b.unitType.IsValid() {
		b.unitType = b.addType(Type{Kind: TypeUnit, Copy: true})
	}
	return b.unitType
}

func (b *ModuleBuilder) BoolType() TypeID {
	if !b.boolType.IsValid() {
		b.boolType = b.addType(Type{Kind: TypeBool, Copy: true})
	}
	return b.boolType
}

func (b *ModuleBuilder) IntType() TypeID {
	if !b.intType.IsValid() {
		b.intType = b.addType(Type{Kind: TypeInt, Copy: true})
	}
	return b.intType
}

func (b *ModuleBuilder) StringType() TypeID {
	if !b.stringType.IsValid() {
		b.stringType = b.addType(Type{Kind: TypeString})
	}
	return b.stringType
}

func (b *ModuleBuilder) ArrayType(elem TypeID) TypeID {
	return b.addType(Type{Kind: TypeArray, Elem: elem})
}

func (b *ModuleBuilder) SliceType(elem TypeID) TypeID {
	return b.addType(Type{Kind: TypeSlice, Elem: elem})
}

// RefType builds &elem (mut=false) or &mut elem. An empty lifetime means
// elided; the verifier assigns a variable during elision.
func (b *ModuleBuilder) RefType(elem TypeID, mut bool, lifetime string) TypeID {
	return b.addType(Type{
		Kind:     TypeRef,
		Elem:     elem,
		Mut:      mut,
		Lifetime: lifetime,
		Copy:     !mut,
	})
}

func (b *ModuleBuilder) StructType(name string, lifetimes []string, fields ...Field) TypeID {
	return b.addType(Type{Kind: TypeStruct, Name: name, Lifetimes: lifetimes, Fields: fields})
}

// InteriorType wraps elem in a cell-like container: aliasing through it is
// the runtime's problem, not the verifier's.
func (b *ModuleBuilder) InteriorType(name string, elem TypeID) TypeID {
	return b.addType(Type{Kind: TypeStruct, Name: name, Fields: []Field{{Name: "value", Type: elem}}, Interior: true})
}

// NewFunc opens a function builder. Call Build to append it to the module.
func (b *ModuleBuilder) NewFunc(name string) *FuncBuilder {
	fb := &FuncBuilder{mod: b}
	fb.fn.Name = name
	fb.fn.Span = b.nextSpan()
	fb.fn.Result = b.UnitType()
	return fb
}

// Module finalizes and returns the built module.
func (b *ModuleBuilder) Module() *Module {
	if len(b.mod.Sources) == 0 && b.cursor > 0 {
		b.mod.Sources = append(b.mod.Sources, SourceFile{Path: "<synthetic>", Content: nil})
	}
	return &b.mod
}

// FuncBuilder assembles one function's arenas.
type FuncBuilder struct {
	mod *ModuleBuilder
	fn  Func
}

func (fb *FuncBuilder) Lifetime(name string) *FuncBuilder {
	fb.fn.Lifetimes = append(fb.fn.Lifetimes, name)
	return fb
}

// Outlives declares 'longer: 'shorter.
func (fb *FuncBuilder) Outlives(longer, shorter string) *FuncBuilder {
	fb.fn.Outlives = append(fb.fn.Outlives, [2]string{longer, shorter})
	return fb
}

func (fb *FuncBuilder) Param(name string, t TypeID) *FuncBuilder {
	fb.fn.Params = append(fb.fn.Params, Param{Name: name, Type: t, Span: fb.mod.nextSpan()})
	return fb
}

func (fb *FuncBuilder) SelfParam(t TypeID) *FuncBuilder {
	fb.fn.Params = append(fb.fn.Params, Param{Name: "self", Type: t, Span: fb.mod.nextSpan(), IsSelf: true})
	return fb
}

func (fb *FuncBuilder) Result(t TypeID) *FuncBuilder {
	fb.fn.Result = t
	fb.fn.ResultSpan = fb.mod.nextSpan()
	return fb
}

func (fb *FuncBuilder) addExpr(e Expr) ExprID {
	id := ExprID(len(fb.fn.Exprs)) //nolint:gosec // arena sizes stay small
	fb.fn.Exprs = append(fb.fn.Exprs, e)
	return id
}

func (fb *FuncBuilder) addStmt(s Stmt) StmtID {
	id := StmtID(len(fb.fn.Stmts)) //nolint:gosec // arena sizes stay small
	fb.fn.Stmts = append(fb.fn.Stmts, s)
	return id
}

func (fb *FuncBuilder) exprType(id ExprID) TypeID {
	if e := fb.fn.Expr(id); e != nil {
		return e.Type
	}
	return NoTypeID
}

func (fb *FuncBuilder) Unit() ExprID {
	return fb.addExpr(Expr{Kind: ExprUnit, Span: fb.mod.nextSpan(), Type: fb.mod.UnitType()})
}

func (fb *FuncBuilder) LitInt(text string) ExprID {
	return fb.addExpr(Expr{Kind: ExprLitInt, Span: fb.mod.nextSpan(), Type: fb.mod.IntType(), Lit: text})
}

func (fb *FuncBuilder) LitBool(text string) ExprID {
	return fb.addExpr(Expr{Kind: ExprLitBool, Span: fb.mod.nextSpan(), Type: fb.mod.BoolType(), Lit: text})
}

func (fb *FuncBuilder) LitString(text string) ExprID {
	return fb.addExpr(Expr{Kind: ExprLitString, Span: fb.mod.nextSpan(), Type: fb.mod.StringType(), Lit: text})
}

func (fb *FuncBuilder) Local(name string, t TypeID) ExprID {
	return fb.addExpr(Expr{Kind: ExprLocal, Span: fb.mod.nextSpan(), Type: t, Name: name})
}

func (fb *FuncBuilder) Field(base ExprID, name string, t TypeID) ExprID {
	return fb.addExpr(Expr{Kind: ExprField, Span: fb.mod.nextSpan(), Type: t, Name: name, X: base})
}

func (fb *FuncBuilder) Index(base, index ExprID, t TypeID) ExprID {
	return fb.addExpr(Expr{Kind: ExprIndex, Span: fb.mod.nextSpan(), Type: t, X: base, Y: index})
}

// Ref borrows the operand place. The result type is a fresh elided
// reference over the operand's type.
func (fb *FuncBuilder) Ref(operand ExprID, mut bool) ExprID {
	refType := fb.mod.RefType(fb.exprType(operand), mut, "")
	return fb.addExpr(Expr{Kind: ExprRef, Span: fb.mod.nextSpan(), Type: refType, X: operand, Mut: mut})
}

func (fb *FuncBuilder) Deref(operand ExprID) ExprID {
	elem := NoTypeID
	if t := fb.mod.mod.Type(fb.exprType(operand)); t != nil && t.Kind == TypeRef {
		elem = t.Elem
	}
	return fb.addExpr(Expr{Kind: ExprDeref, Span: fb.mod.nextSpan(), Type: elem, X: operand})
}

func (fb *FuncBuilder) Call(name string, result TypeID, args ...ExprID) ExprID {
	return fb.addExpr(Expr{Kind: ExprCall, Span: fb.mod.nextSpan(), Type: result, Name: name, Args: args})
}

func (fb *FuncBuilder) StructLit(t TypeID, inits ...FieldInit) ExprID {
	return fb.addExpr(Expr{Kind: ExprStructLit, Span: fb.mod.nextSpan(), Type: t, Fields: inits})
}

func (fb *FuncBuilder) Binary(op string, x, y ExprID, t TypeID) ExprID {
	return fb.addExpr(Expr{Kind: ExprBinary, Span: fb.mod.nextSpan(), Type: t, Op: op, X: x, Y: y})
}

func (fb *FuncBuilder) Let(name string, t TypeID, init ExprID) StmtID {
	return fb.addStmt(Stmt{Kind: StmtLet, Span: fb.mod.nextSpan(), Name: name, Type: t, Init: init})
}

func (fb *FuncBuilder) LetMut(name string, t TypeID, init ExprID) StmtID {
	return fb.addStmt(Stmt{Kind: StmtLet, Span: fb.mod.nextSpan(), Name: name, Mut: true, Type: t, Init: init})
}

// LetUninit declares a binding without an initializer; the first assignment
// brings it into the Owned state.
func (fb *FuncBuilder) LetUninit(name string, t TypeID, mut bool) StmtID {
	return fb.addStmt(Stmt{Kind: StmtLet, Span: fb.mod.nextSpan(), Name: name, Mut: mut, Type: t, Init: NoExprID})
}

func (fb *FuncBuilder) Assign(target, value ExprID) StmtID {
	return fb.addStmt(Stmt{Kind: StmtAssign, Span: fb.mod.nextSpan(), Target: target, Value: value})
}

func (fb *FuncBuilder) ExprStmt(value ExprID) StmtID {
	return fb.addStmt(Stmt{Kind: StmtExpr, Span: fb.mod.nextSpan(), Value: value})
}

func (fb *FuncBuilder) If(cond ExprID, then, els []StmtID) StmtID {
	return fb.addStmt(Stmt{Kind: StmtIf, Span: fb.mod.nextSpan(), Cond: cond, Then: then, Else: els})
}

func (fb *FuncBuilder) While(cond ExprID, body []StmtID) StmtID {
	return fb.addStmt(Stmt{Kind: StmtWhile, Span: fb.mod.nextSpan(), Cond: cond, Then: body})
}

func (fb *FuncBuilder) Loop(body []StmtID) StmtID {
	return fb.addStmt(Stmt{Kind: StmtLoop, Span: fb.mod.nextSpan(), Then: body})
}

func (fb *FuncBuilder) Break() StmtID {
	return fb.addStmt(Stmt{Kind: StmtBreak, Span: fb.mod.nextSpan()})
}

func (fb *FuncBuilder) Continue() StmtID {
	return fb.addStmt(Stmt{Kind: StmtContinue, Span: fb.mod.nextSpan()})
}

func (fb *FuncBuilder) Return(value ExprID) StmtID {
	return fb.addStmt(Stmt{Kind: StmtReturn, Span: fb.mod.nextSpan(), Value: value})
}

func (fb *FuncBuilder) ReturnVoid() StmtID {
	return fb.addStmt(Stmt{Kind: StmtReturn, Span: fb.mod.nextSpan(), Value: NoExprID})
}

func (fb *FuncBuilder) Block(body []StmtID) StmtID {
	return fb.addStmt(Stmt{Kind: StmtBlock, Span: fb.mod.nextSpan(), Then: body})
}

// Build finalizes the function with the given top-level statements and
// appends it to the module.
func (fb *FuncBuilder) Build(body ...StmtID) FuncID {
	fb.fn.Body = body
	id := FuncID(len(fb.mod.mod.Funcs)) //nolint:gosec // arena sizes stay small
	fb.mod.mod.Funcs = append(fb.mod.mod.Funcs, fb.fn)
	return id
}
