// Package google builds OAuth2 token sources for the Google Calendar API.
//
// Credentials come from one of three places, tried in order: a service
// account email and private key supplied through configuration, a JSON
// credentials file, or Application Default Credentials. The resulting token
// source is handed to calendar.NewClient; nothing in this package keeps
// process-wide state.
package google
