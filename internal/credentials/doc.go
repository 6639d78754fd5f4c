// Package credentials provides the secret-handling primitives of the
// identity core: Argon2id hashing and verification shared by passwords and
// verification codes, the password strength policy, and the one-time code
// generator.
//
// Hash strings use the PHC-like encoding
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
//
// and are treated as untrusted input during verification.
package credentials
