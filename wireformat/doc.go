// Package wireformat encodes and decodes the bit-exact on-disk backup
// format of spec §6.1: the common FileHeader, and the control/data/log
// file bodies. All multi-word integers are big-endian ("network
// order"); the addressable unit is a 32-bit word.
//
// Encoding follows the teacher's jsonenc package's append-to-buffer
// convention (AppendXxx(dst []byte, ...) []byte), translated from JSON
// token emission to fixed-width big-endian word emission via
// encoding/binary.
package wireformat
