package tir

type (
	// TypeID indexes Module.Types.
	TypeID int32
	// FuncID indexes Module.Funcs.
	FuncID int32
	// ExprID indexes Func.Exprs.
	ExprID int32
	// StmtID indexes Func.Stmts.
	StmtID int32
)

const (
	NoTypeID TypeID = -1
	NoFuncID FuncID = -1
	NoExprID ExprID = -1
	NoStmtID StmtID = -1
)

func (id TypeID) IsValid() bool { return id >= 0 }
func (id FuncID) IsValid() bool { return id >= 0 }
func (id ExprID) IsValid() bool { return id >= 0 }
func (id StmtID) IsValid() bool { return id >= 0 }
