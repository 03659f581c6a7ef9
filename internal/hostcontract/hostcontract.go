// Package hostcontract documents, as plain string constants, the
// runtime method names the emitted code assumes of the host's
// connection/transaction/reactive-flow library. It has no behavior:
// it exists so the emitter's templates and any future
// "--target-contract" validation share one source of truth instead of
// duplicating string literals.
package hostcontract

// Statement-level binding and read methods expected on a prepared
// statement handle.
const (
	MethodPrepare        = "prepare"
	MethodBindInt        = "bindInt"
	MethodBindLong       = "bindLong"
	MethodBindDouble     = "bindDouble"
	MethodBindText       = "bindText"
	MethodBindBlob       = "bindBlob"
	MethodBindNull       = "bindNull"
	MethodGetInt         = "getInt"
	MethodGetLong        = "getLong"
	MethodGetDouble      = "getDouble"
	MethodGetText        = "getText"
	MethodGetBlob        = "getBlob"
	MethodIsNull         = "isNull"
	MethodStep           = "step"
	MethodReset          = "reset"
	MethodClearBindings  = "clearBindings"
	MethodClose          = "close"
)

// Database-level methods expected on the connection/transaction
// façade.
const (
	MethodTransaction         = "transaction"
	MethodNotifyTablesChanged = "notifyTablesChanged"
	MethodReactiveFlow        = "reactiveFlow"
	MethodApplyMigration      = "applyMigration"
)

// TransactionMode enumerates the transaction modes the runtime's
// transaction() method accepts.
type TransactionMode string

const (
	ModeDeferred  TransactionMode = "DEFERRED"
	ModeImmediate TransactionMode = "IMMEDIATE"
	ModeExclusive TransactionMode = "EXCLUSIVE"
)

// StatementMethods lists every method the emitted Params/Result
// binding code may call on a prepared statement, in the order the
// emitter prefers to call them (binds before steps before reads).
var StatementMethods = []string{
	MethodPrepare,
	MethodBindInt, MethodBindLong, MethodBindDouble, MethodBindText, MethodBindBlob, MethodBindNull,
	MethodStep,
	MethodGetInt, MethodGetLong, MethodGetDouble, MethodGetText, MethodGetBlob, MethodIsNull,
	MethodReset, MethodClearBindings, MethodClose,
}
