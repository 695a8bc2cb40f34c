// Package keys manages author signing keys and the signature block of a ROM.
//
// Keys live in a directory laid out like the device's system partition:
// priv/<author> holds the hex encoded seed and pub/<author> the public key
// as "alg:base64". Two algorithms are supported, ed25519 (the default) and
// dilithium3.
//
// Signing is hash-then-sign: the package digest is signed as is, and the
// signature block records the hash algorithm that produced it.
package keys
