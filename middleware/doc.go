// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /results", middleware.WithLogging(handler))

Logs one line per request with method, path, query, status, client IP and
duration_ms. Responses of 500 and above, including the 503 served before the
first apportionment, are logged at warn level.

# CORS Middleware

Let dashboards on other origins read the API:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows methods GET and OPTIONS with the Content-Type header. Preflight
requests get 204 without reaching the router; other methods get 405.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusServiceUnavailable, "not enough data yet")

# Client IP Extraction

Get the original client IP (handles X-Forwarded-For, X-Real-IP):

	ip := middleware.GetClientIP(r)
*/
package middleware
