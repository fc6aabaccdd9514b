package api

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
)

const apiVersion = "v1"

// getOpenAPI handles GET /swagger/v1/swagger.json
func (s *Server) getOpenAPI(c echo.Context) error {
	return c.JSON(http.StatusOK, OpenAPI())
}

func errorSchema(withIDs bool) *openapi3.Schema {
	schema := openapi3.NewObjectSchema().
		WithProperty("error", openapi3.NewStringSchema())
	if withIDs {
		schema = schema.
			WithProperty("threadId", openapi3.NewStringSchema()).
			WithProperty("agentId", openapi3.NewStringSchema()).
			WithProperty("status", openapi3.NewStringSchema())
	}
	return schema
}

func jsonResponse(description string, schema *openapi3.Schema) *openapi3.Response {
	return openapi3.NewResponse().WithDescription(description).WithJSONSchema(schema)
}

// OpenAPI describes the gateway's HTTP surface
func OpenAPI() *openapi3.T {
	persona := openapi3.NewObjectSchema().
		WithProperty("name", openapi3.NewStringSchema()).
		WithProperty("displayName", openapi3.NewStringSchema()).
		WithProperty("description", openapi3.NewStringSchema())

	historyEntry := openapi3.NewObjectSchema().
		WithProperty("role", openapi3.NewStringSchema().WithEnum("user", "assistant")).
		WithProperty("content", openapi3.NewStringSchema()).
		WithProperty("createdAt", openapi3.NewDateTimeSchema())

	sendRequest := openapi3.NewObjectSchema().
		WithProperty("agentName", openapi3.NewStringSchema()).
		WithProperty("agentId", openapi3.NewStringSchema()).
		WithProperty("threadId", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema())
	sendRequest.Required = []string{"message"}

	sendResponse := openapi3.NewObjectSchema().
		WithProperty("threadId", openapi3.NewStringSchema()).
		WithProperty("agentId", openapi3.NewStringSchema())

	history := openapi3.NewOperation()
	history.OperationID = "getChatHistory"
	history.Tags = []string{"Chat"}
	history.Summary = "List the messages of a thread, oldest first"
	history.AddParameter(openapi3.NewQueryParameter("threadId").WithSchema(openapi3.NewStringSchema()))
	history.AddResponse(http.StatusOK, jsonResponse("Chat history; empty for unknown threads", openapi3.NewArraySchema().WithItems(historyEntry)))
	history.AddResponse(http.StatusInternalServerError, jsonResponse("Unexpected failure", errorSchema(false)))

	send := openapi3.NewOperation()
	send.OperationID = "sendChatMessage"
	send.Tags = []string{"Chat"}
	send.Summary = "Send a message and wait for the agent's run to finish"
	send.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(sendRequest)}
	send.AddResponse(http.StatusOK, jsonResponse("Thread and agent the message ran on", sendResponse))
	send.AddResponse(http.StatusBadRequest, jsonResponse("Invalid body or empty message", errorSchema(false)))
	send.AddResponse(http.StatusBadGateway, jsonResponse("Run ended failed, cancelled or expired", errorSchema(true)))
	send.AddResponse(http.StatusGatewayTimeout, jsonResponse("Run did not finish in time", errorSchema(true)))
	send.AddResponse(http.StatusInternalServerError, jsonResponse("Unexpected failure", errorSchema(false)))

	agent := openapi3.NewOperation()
	agent.OperationID = "getAgent"
	agent.Tags = []string{"Agent"}
	agent.Summary = "Describe the default or named agent persona"
	agent.AddParameter(openapi3.NewQueryParameter("name").WithSchema(openapi3.NewStringSchema()))
	agent.AddResponse(http.StatusOK, jsonResponse("Agent persona", persona))
	agent.AddResponse(http.StatusNotFound, jsonResponse("Unknown persona", errorSchema(false)))

	agents := openapi3.NewOperation()
	agents.OperationID = "listAgents"
	agents.Tags = []string{"Agent"}
	agents.Summary = "List every agent persona"
	agents.AddResponse(http.StatusOK, jsonResponse("Agent personas", openapi3.NewArraySchema().WithItems(persona)))

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   "agentchat",
			Version: apiVersion,
		},
		Paths: openapi3.NewPaths(
			openapi3.WithPath("/api/chat/history", &openapi3.PathItem{Get: history}),
			openapi3.WithPath("/api/chat/send", &openapi3.PathItem{Post: send}),
			openapi3.WithPath("/api/agent", &openapi3.PathItem{Get: agent}),
			openapi3.WithPath("/api/agents", &openapi3.PathItem{Get: agents}),
		),
	}
}
