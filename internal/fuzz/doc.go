// Package fuzztests houses Go fuzz harnesses for the front of the
// pipeline (source -> lexer -> parser -> IR generation). They guard
// against panics and hangs on arbitrary input.
//
// Не делает: генерацию корпусов, запись файлов, исполнение кода.
package fuzztests
