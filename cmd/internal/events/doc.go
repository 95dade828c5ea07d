// Package events is the event directory: scheduled virtual gatherings,
// their RSVPs, and attendance tracking. It backs the public CRUD API
// and answers existence lookups for the chat subsystem.
package events
