// Package rom holds the vocabulary shared by the ROM toolchain: app ids, member
// file names and the structured error taxonomy.
//
// Every stage of the pipeline reports failures as *Error values so that callers
// can branch on Kind without parsing messages.
package rom
