// Package config resolves the SDK configuration: the backend endpoint, the
// credentials used to reach it and the limits applied to every request.
//
// Values come from four layers. Later layers win:
//
//  1. Default()
//  2. the DHCORE_* environment variables (FromEnv)
//  3. a YAML config file (LoadFile)
//  4. values passed explicitly by the caller
//
// Resolve applies the layers in that order and validates the result.
//
// Tokens obtained through an OAuth2 refresh are persisted by TokenCache so
// that later processes can reuse them.
package config
