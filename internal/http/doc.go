// Package http exposes the reservation services over a JSON API built on gin.
//
// Every versioned route lives under /api/v1. POST /auth/login and
// POST /auth/refresh are public; everything else requires an
// "Authorization: Bearer <access token>" header, and catalog mutations
// (users, blocks, rooms, semesters) additionally require an administrator.
//
// Errors share one body shape:
//
//	{"error_code": "validation", "message": "...", "errors": {"field": "..."}, "codes": {"field": "Required"}}
//
// Conflicts add a "conflicts" list naming the overlapping rule or reservation,
// and partial occurrence generation failures add "persisted".
//
// Rooms and recurring rules can also be exported as iCalendar documents at
// /rooms/:id/calendar.ics and /recurring-rules/:id/calendar.ics.
package http
