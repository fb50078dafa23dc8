package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldLoginID  = "login_id"
	FieldUsername = "username"
	FieldRole     = "role"

	// Consultation
	FieldRoomID   = "room_id"
	FieldRoomUUID = "room_uuid"
	FieldVetID    = "vet_id"
	FieldConnID   = "conn_id"

	// Service
	FieldService = "service"
)
