// Package token defines lexical token kinds for the kalmap language.
// Invariants:
//   - Token.Span covers Text exactly.
//   - Every byte that does not start an identifier, number, comment or whitespace
//     becomes a one-character Char token; operators are never multi-character.
package token
