package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Лексические
	LexInfo      Code = 1000
	LexBadNumber Code = 1004

	// Парсерные
	SynInfo              Code = 2000
	SynUnexpectedToken   Code = 2001
	SynExpectExpression  Code = 2002
	SynExpectRParen      Code = 2003
	SynExpectIdentifier  Code = 2004
	SynExpectThen        Code = 2005
	SynExpectElse        Code = 2006
	SynForExpectAssign   Code = 2007
	SynForExpectComma    Code = 2008
	SynForMissingIn      Code = 2009
	SynVarMissingIn      Code = 2010
	SynExpectPrototype   Code = 2011
	SynExpectLParen      Code = 2012
	SynBadPrecedence     Code = 2013
	SynOperatorArity     Code = 2014
	SynMapCallee         Code = 2015
	SynExpectRBracket    Code = 2016
	SynExpectOperator    Code = 2017
	SynMapExpectArgument Code = 2018

	// Семантика и кодогенерация
	SemInfo               Code = 3000
	SemUnknownVariable    Code = 3001
	SemUnknownFunction    Code = 3002
	SemArityMismatch      Code = 3003
	SemRedefinition       Code = 3004
	SemPrototypeMismatch  Code = 3005
	SemAssignTarget       Code = 3006
	SemUnknownUnary       Code = 3007
	SemTypeMismatch       Code = 3008
	SemMapCalleeNotScalar Code = 3009
	SemMapArgNotVector    Code = 3010
	SemVerifyFailed       Code = 3011
	SemInternal           Code = 3999

	// Автоматический offload (map)
	OffInfo           Code = 4000
	OffUnknownCallee  Code = 4001
	OffArity          Code = 4002
	OffLengthMismatch Code = 4003
	OffHostAlloc      Code = 4004
	OffKernelVerify   Code = 4005
	OffCompile        Code = 4006
	OffDevice         Code = 4007
	OffSynthesis      Code = 4008

	// Исполнение
	RunInfo  Code = 5000
	RunFault Code = 5001
)

var codeDescription = map[Code]string{
	UnknownCode: "Unknown error",

	LexInfo:      "Lexical information",
	LexBadNumber: "Malformed numeric literal",

	SynInfo:              "Syntax information",
	SynUnexpectedToken:   "Unexpected token",
	SynExpectExpression:  "Expected expression",
	SynExpectRParen:      "Expected ')'",
	SynExpectIdentifier:  "Expected identifier",
	SynExpectThen:        "Expected 'then'",
	SynExpectElse:        "Expected 'else'",
	SynForExpectAssign:   "Expected '=' after for",
	SynForExpectComma:    "Expected ',' after for start value",
	SynForMissingIn:      "Expected 'in' after for",
	SynVarMissingIn:      "Expected 'in' after var",
	SynExpectPrototype:   "Expected function name in prototype",
	SynExpectLParen:      "Expected '(' in prototype",
	SynBadPrecedence:     "Invalid precedence: must be 1..100",
	SynOperatorArity:     "Invalid number of operands for operator",
	SynMapCallee:         "Expected function name in map",
	SynExpectRBracket:    "Expected ']'",
	SynExpectOperator:    "Expected operator character",
	SynMapExpectArgument: "Expected vector argument in map",

	SemInfo:               "Semantic information",
	SemUnknownVariable:    "Unknown variable name",
	SemUnknownFunction:    "Unknown function referenced",
	SemArityMismatch:      "Incorrect number of arguments passed",
	SemRedefinition:       "Redefinition of function",
	SemPrototypeMismatch:  "Redefinition of function with different signature",
	SemAssignTarget:       "Destination of '=' must be a variable",
	SemUnknownUnary:       "Unknown unary operator",
	SemTypeMismatch:       "Operand types do not match",
	SemMapCalleeNotScalar: "Mapped function must take and return scalars",
	SemMapArgNotVector:    "Map arguments must be vectors",
	SemVerifyFailed:       "Generated function failed verification",
	SemInternal:           "Internal compiler error",

	OffInfo:           "Offload information",
	OffUnknownCallee:  "Unknown function in map",
	OffArity:          "Map argument count does not match function",
	OffLengthMismatch: "Map argument lengths differ",
	OffHostAlloc:      "Could not allocate host memory",
	OffKernelVerify:   "Kernel module failed verification",
	OffCompile:        "Device compilation failed",
	OffDevice:         "Device runtime error",
	OffSynthesis:      "Kernel synthesis failed",

	RunInfo:  "Runtime information",
	RunFault: "Runtime fault",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LEX%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("SEM%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("OFF%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("RUN%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}

