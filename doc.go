// Package identity implements the account identity and consistency core of the
// dz-tabib medical directory backend: credential hashing, the access/refresh
// token pair, the one-time password reset code protocol, the transactional
// account/profile mutation engine, and the suspend/reinstate lifecycle.
//
// Design notes:
//
//   - Accounts carry a role (patient, doctor, admin) and exactly one matching
//     satellite profile row. The profile engine dispatches on the role tag and
//     keeps the account row and its satellites consistent inside a single
//     transaction; partial application is never observable.
//   - The token service signs access and refresh tokens with distinct secrets.
//     Rotation re-issues only the access token, carrying the original claims.
//   - Reset codes are 6-digit, single-use, and expire after one hour. The
//     verify step is non-consuming; consumption clears the code atomically
//     with the credential update.
//   - Authorization trusts the role embedded in a verified token. Suspension
//     and role changes take effect once the holder's access token expires.
package identity
