package lexer

import "golang.org/x/text/cases"

// foldCaser normalizes identifiers for keyword lookup. ST keyword
// matching is case-insensitive ("program", "Program", "PROGRAM",
// "PrOgRaM" must all tokenize identically) and must stay correct for
// source containing non-ASCII identifiers elsewhere in the file, so
// folding goes through golang.org/x/text/cases rather than a bespoke
// ASCII upper-case loop.
var foldCaser = cases.Fold()

// keywords maps the case-folded spelling of every reserved word to its
// token kind. Multi-word keywords (END_FUNCTION_BLOCK, VAR_IN_OUT, ...)
// are matched as a single identifier run containing underscores, which
// is how IEC 61131-3 source actually spells them.
var keywords = map[string]Kind{
	"program":            KwProgram,
	"end_program":        KwEndProgram,
	"function":           KwFunction,
	"end_function":       KwEndFunction,
	"function_block":     KwFunctionBlock,
	"end_function_block": KwEndFunctionBlock,
	"class":              KwClass,
	"end_class":          KwEndClass,
	"interface":          KwInterface,
	"end_interface":      KwEndInterface,
	"method":             KwMethod,
	"end_method":         KwEndMethod,
	"property":           KwProperty,
	"end_property":       KwEndProperty,
	"get":                KwGet,
	"set":                KwSet,
	"namespace":          KwNamespace,
	"end_namespace":      KwEndNamespace,
	"using":              KwUsing,
	"action":             KwAction,
	"end_action":         KwEndAction,
	"extends":            KwExtends,
	"implements":         KwImplements,
	"abstract":           KwAbstract,
	"final":              KwFinal,
	"override":           KwOverride,
	"public":             KwPublic,
	"private":            KwPrivate,
	"protected":          KwProtected,
	"internal":           KwInternal,

	"var":          KwVar,
	"var_input":    KwVarInput,
	"var_output":   KwVarOutput,
	"var_in_out":   KwVarInOut,
	"var_global":   KwVarGlobal,
	"var_external": KwVarExternal,
	"var_temp":     KwVarTemp,
	"var_access":   KwVarAccess,
	"var_config":   KwVarConfig,
	"end_var":      KwEndVar,
	"retain":       KwRetain,
	"non_retain":   KwNonRetain,
	"constant":     KwConstant,
	"read_only":    KwReadOnly,
	"read_write":   KwReadWrite,
	"at":           KwAt,

	"type":       KwType,
	"end_type":   KwEndType,
	"struct":     KwStruct,
	"end_struct": KwEndStruct,
	"array":      KwArray,
	"of":         KwOf,
	"string":     KwString,
	"wstring":    KwWString,
	"reference":  KwReference,
	"to":         KwTo,
	"pointer":    KwPointer,

	"configuration":     KwConfiguration,
	"end_configuration": KwEndConfiguration,
	"resource":          KwResource,
	"end_resource":      KwEndResource,
	"task":              KwTask,
	"on":                KwOn,
	"with":              KwWith,
	"single":            KwSingle,
	"interval":          KwInterval,
	"priority":          KwPriority,

	"if":       KwIf,
	"then":     KwThen,
	"elsif":    KwElsif,
	"else":     KwElse,
	"end_if":   KwEndIf,
	"case":     KwCase,
	"end_case": KwEndCase,
	"for":      KwFor,
	"do":       KwDo,
	"by":       KwBy,
	"end_for":  KwEndFor,
	"while":    KwWhile,
	"end_while": KwEndWhile,
	"repeat":    KwRepeat,
	"until":     KwUntil,
	"end_repeat": KwEndRepeat,
	"exit":      KwExit,
	"continue":  KwContinue,
	"return":    KwReturn,

	"not": KwNot,
	"and": KwAnd,
	"or":  KwOr,
	"xor": KwXor,
	"mod": KwMod,
	"div": KwDiv,

	"true":   KwTrue,
	"false":  KwFalse,
	"null":   KwNull,
	"this":   KwThis,
	"super":  KwSuper,
	"ref":    KwRef,
	"ref_to": KwRefTo,
	"adr":    KwAdr,
}

// lookupKeyword returns the keyword kind for a case-folded identifier
// spelling, or (Illegal, false) if the spelling is not reserved.
func lookupKeyword(raw string) (Kind, bool) {
	folded := foldCaser.String(raw)
	k, ok := keywords[folded]
	return k, ok
}

// endKeywordFor reports the END_* keyword kind that closes a statement
// list opened by the given keyword, used by the parser's resync policy.
func endKeywordFor(open Kind) (Kind, bool) {
	switch open {
	case KwProgram:
		return KwEndProgram, true
	case KwFunction:
		return KwEndFunction, true
	case KwFunctionBlock:
		return KwEndFunctionBlock, true
	case KwClass:
		return KwEndClass, true
	case KwInterface:
		return KwEndInterface, true
	case KwMethod:
		return KwEndMethod, true
	case KwProperty:
		return KwEndProperty, true
	case KwNamespace:
		return KwEndNamespace, true
	case KwAction:
		return KwEndAction, true
	case KwVar, KwVarInput, KwVarOutput, KwVarInOut, KwVarGlobal, KwVarExternal, KwVarTemp, KwVarAccess, KwVarConfig:
		return KwEndVar, true
	case KwType:
		return KwEndType, true
	case KwStruct:
		return KwEndStruct, true
	case KwConfiguration:
		return KwEndConfiguration, true
	case KwResource:
		return KwEndResource, true
	case KwIf:
		return KwEndIf, true
	case KwCase:
		return KwEndCase, true
	case KwFor:
		return KwEndFor, true
	case KwWhile:
		return KwEndWhile, true
	case KwRepeat:
		return KwEndRepeat, true
	default:
		return Illegal, false
	}
}
