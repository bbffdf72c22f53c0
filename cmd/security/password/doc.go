// Package password implements the credential digest capability for Warden.
//
// New digests are Argon2id in PHC form:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
//
// Verify also accepts bcrypt digests ($2a$, $2b$, $2y$) so accounts imported
// from older systems keep working. Hash strings are untrusted input: both
// decoders refuse parameters outside sane bounds.
//
// Operational constraint: Verify refuses a stored Argon2id digest whose cost
// exceeds twice the configured Params and reports ErrInvalidHash. Lowering WARDEN_ARGON2_MEMORY_KIB (or the other
// cost knobs) below half of what existing digests were written with makes
// every such login fail with an internal error. Lower costs in steps of at
// most half, and only after stored digests have been rewritten.
package password
