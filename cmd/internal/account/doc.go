// Package account implements the account lifecycle: registration with email
// confirmation, login, and password reset.
//
// Every operation returns either a Result or an *Error whose Kind tells the
// transport layer how to answer. Operations that change a user run inside a
// single identity transaction that holds an exclusive lock on the identity key,
// so two registrations for the same username or email cannot both succeed.
//
// The verification message is sent before the registration commits: if the
// gateway fails the user is not created.
package account
