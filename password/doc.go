// Package password hashes and verifies user passwords.
//
// Two backends implement [Hasher]: [Argon2] (argon2id, PHC string format) and
// [Bcrypt]. [Multi] hashes with one primary backend and verifies any format it
// recognises, so a deployment can switch algorithms without invalidating
// stored hashes.
//
// PHC format produced by Argon2:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// # What this package must NOT do
//
//   - Enforce password policy (length, character classes). The engine does that.
//   - Store passwords or log them.
package password
