package service

import (
	"bufio"
	"context"
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/jkmaina/autogen-blueprint/agent"
	"github.com/jkmaina/autogen-blueprint/api"
	"github.com/jkmaina/autogen-blueprint/pkg/slogx"
	"github.com/jkmaina/autogen-blueprint/provider/openai"
)

const (
	defaultModelName     = "gpt-4o"
	defaultTemperature   = 0.7
	defaultSystemMessage = "You are a helpful assistant."
)

// AgentRequest creates an agent.
type AgentRequest struct {
	AgentID           string  `json:"agent_id"`
	SystemMessage     string  `json:"system_message"`
	ModelName         string  `json:"model_name"`
	Temperature       float64 `json:"temperature"`
	MaxTokens         int64   `json:"max_tokens,omitempty"`
	ParallelToolCalls *bool   `json:"parallel_tool_calls,omitempty"`
}

// AgentInfo describes a registered agent.
type AgentInfo struct {
	AgentID           string  `json:"agent_id"`
	ModelName         string  `json:"model_name"`
	SystemMessage     string  `json:"system_message"`
	Temperature       float64 `json:"temperature"`
	MaxTokens         int64   `json:"max_tokens,omitempty"`
	ParallelToolCalls bool    `json:"parallel_tool_calls"`
	CreatedAt         string  `json:"created_at"`
}

// TaskRequest runs a task on a registered agent.
type TaskRequest struct {
	AgentID string `json:"agent_id"`
	Task    string `json:"task"`
}

// TaskResponse is the outcome of a task run.
type TaskResponse struct {
	AgentID   string `json:"agent_id"`
	Task      string `json:"task"`
	Response  string `json:"response"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// RunRequest runs a task on a throwaway agent.
type RunRequest struct {
	Task          string `json:"task"`
	SystemMessage string `json:"system_message,omitempty"`
	ModelName     string `json:"model_name,omitempty"`
}

// HealthResponse reports service liveness for load balancers.
type HealthResponse struct {
	Status      string `json:"status"`
	AgentsCount int    `json:"agents_count"`
}

// StreamChunk is one server-sent event of a streaming task run.
type StreamChunk struct {
	Content   string `json:"content"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse carries an error back to the client.
type ErrorResponse struct {
	Error string `json:"error"`
}

type registeredAgent struct {
	agent api.Agent
	info  AgentInfo
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:      "healthy",
		AgentsCount: int(s.agents.Len()),
	})
}

func (s *Server) handleCreateAgent(c *fiber.Ctx) error {
	var req AgentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.AgentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "agent_id is required"})
	}
	if req.SystemMessage == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "system_message is required"})
	}

	if req.ModelName == "" {
		req.ModelName = defaultModelName
	}
	if req.Temperature == 0 {
		req.Temperature = defaultTemperature
	}
	parallel := true
	if req.ParallelToolCalls != nil {
		parallel = *req.ParallelToolCalls
	}

	entry := registeredAgent{
		agent: agent.New(
			agent.Name(req.AgentID),
			agent.Model(openai.Model(req.ModelName)),
			agent.Instructions(req.SystemMessage),
			agent.ParallelToolCalls(parallel),
		),
		info: AgentInfo{
			AgentID:           req.AgentID,
			ModelName:         req.ModelName,
			SystemMessage:     req.SystemMessage,
			Temperature:       req.Temperature,
			MaxTokens:         req.MaxTokens,
			ParallelToolCalls: parallel,
			CreatedAt:         time.Now().UTC().Format(time.RFC3339),
		},
	}

	if _, loaded := s.agents.GetOrSet(req.AgentID, entry); loaded {
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error: fmt.Sprintf("agent %s already exists", req.AgentID),
		})
	}

	s.logger.Info("agent created", "agent_id", req.AgentID, "model", req.ModelName)
	return c.Status(fiber.StatusCreated).JSON(entry.info)
}

func (s *Server) handleListAgents(c *fiber.Ctx) error {
	infos := make([]AgentInfo, 0, s.agents.Len())
	s.agents.ForEach(func(_ string, entry registeredAgent) bool {
		infos = append(infos, entry.info)
		return true
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].AgentID < infos[j].AgentID })

	return c.JSON(fiber.Map{"agents": infos, "total": len(infos)})
}

func (s *Server) handleGetAgent(c *fiber.Ctx) error {
	id := c.Params("id")
	entry, ok := s.agents.Get(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error: fmt.Sprintf("agent %s not found", id),
		})
	}
	return c.JSON(entry.info)
}

func (s *Server) handleDeleteAgent(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, ok := s.agents.Get(id); !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error: fmt.Sprintf("agent %s not found", id),
		})
	}
	s.agents.Del(id)

	s.logger.Info("agent deleted", "agent_id", id)
	return c.JSON(fiber.Map{"message": fmt.Sprintf("agent %s deleted", id)})
}

func (s *Server) handleRunTask(c *fiber.Ctx) error {
	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Task == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "task is required"})
	}

	entry, ok := s.agents.Get(req.AgentID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error: fmt.Sprintf("agent %s not found", req.AgentID),
		})
	}

	response, err := s.runner(c.Context(), entry.agent, req.Task, nil)
	if err != nil {
		s.logger.Error("task failed", "agent_id", req.AgentID, slogx.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(TaskResponse{
		AgentID:   req.AgentID,
		Task:      req.Task,
		Response:  response,
		Status:    "completed",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStreamTask(c *fiber.Ctx) error {
	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Task == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "task is required"})
	}

	entry, ok := s.agents.Get(req.AgentID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error: fmt.Sprintf("agent %s not found", req.AgentID),
		})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// the writer runs after this handler returns, so the run gets its own
	// context
	runner, logger := s.runner, s.logger
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx := context.Background()
		_, err := runner(ctx, entry.agent, req.Task, func(content string) {
			writeChunk(w, StreamChunk{
				Content:   content,
				Type:      "content",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		})
		if err != nil {
			logger.Error("streaming task failed", "agent_id", req.AgentID, slogx.Error(err))
			writeChunk(w, StreamChunk{
				Content:   "Error: " + err.Error(),
				Type:      "error",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
		writeChunk(w, StreamChunk{
			Content:   "[DONE]",
			Type:      "completion",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	})

	return nil
}

func (s *Server) handleRunAdhoc(c *fiber.Ctx) error {
	var req RunRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Task == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "task is required"})
	}
	if req.SystemMessage == "" {
		req.SystemMessage = defaultSystemMessage
	}
	if req.ModelName == "" {
		req.ModelName = defaultModelName
	}

	adhoc := agent.New(
		agent.Name("adhoc"),
		agent.Model(openai.Model(req.ModelName)),
		agent.Instructions(req.SystemMessage),
	)

	response, err := s.runner(c.Context(), adhoc, req.Task, nil)
	if err != nil {
		s.logger.Error("adhoc run failed", slogx.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(TaskResponse{
		AgentID:   "adhoc",
		Task:      req.Task,
		Response:  response,
		Status:    "completed",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeChunk(w *bufio.Writer, chunk StreamChunk) {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	w.Flush()
}
