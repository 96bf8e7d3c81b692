// Package credentials stores the bearer token used against an authenticated
// SearXNG instance.
//
// Manager tries the system keychain first, then an AES-GCM encrypted file
// in the picharvest config directory, and finally reads PICHARVEST_SEARCH_TOKEN
// from the environment. Tokens are keyed by account name; the CLI uses the
// SearXNG host as the account.
package credentials
