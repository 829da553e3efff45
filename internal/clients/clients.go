package clients

import "time"

// ServiceName identifies this service in x-service-name headers on
// service-to-service calls.
const ServiceName = "event-planner-core"

// collaboratorTimeout bounds every outbound call to a collaborator.
const collaboratorTimeout = 10 * time.Second
