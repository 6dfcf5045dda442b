package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/spigell/hh-outreach/internal/ai"
	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/outreach"
)

type generateRequest struct {
	ContactID string         `json:"contact_id" binding:"required"`
	Settings  ai.Settings    `json:"settings"`
	Draft     outreach.Draft `json:"draft"`
}

type followUpRequest struct {
	ContactID string         `json:"contact_id" binding:"required"`
	Draft     outreach.Draft `json:"draft"`
}

type outcomeResponse struct {
	*outreach.Outcome
	Warning string `json:"warning,omitempty"`
}

type viewResponse struct {
	ContactID string               `json:"contact_id"`
	Thread    *conversation.Thread `json:"thread,omitempty"`
	Ready     bool                 `json:"ready"`
}

// listContacts narrows the list with ?with=sent (emailed at least once) or
// ?with=conversation (any recorded email).
func (s *Server) listContacts(c *gin.Context) {
	var (
		contacts []conversation.Contact
		err      error
	)
	switch with := c.Query("with"); with {
	case "":
		contacts, err = s.contacts.ListContacts(c.Request.Context())
	case "sent":
		contacts, err = s.contacts.ContactsWithSentEmail(c.Request.Context())
	case "conversation":
		contacts, err = s.contacts.ContactsWithConversation(c.Request.Context())
	default:
		badRequest(c, fmt.Errorf("unknown contacts filter %q, use sent or conversation", with))
		return
	}
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

func (s *Server) createContact(c *gin.Context) {
	var contact conversation.Contact
	if err := c.ShouldBindJSON(&contact); err != nil {
		badRequest(c, err)
		return
	}
	if strings.TrimSpace(contact.Email) == "" {
		badRequest(c, errors.New("email is required"))
		return
	}

	if err := s.contacts.CreateContact(c.Request.Context(), &contact); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (s *Server) thread(c *gin.Context) {
	thread, err := s.engine.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (s *Server) eligibility(c *gin.Context) {
	contacts, err := s.contacts.ListContacts(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	report, err := s.engine.Eligibility(c.Request.Context(), contacts, s.filters)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) followUpsDue(c *gin.Context) {
	due, err := s.engine.FollowUpsDue(c.Request.Context(), s.filters)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": due})
}

func (s *Server) preview(c *gin.Context) {
	var d outreach.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, outreach.Preview(d))
}

func (s *Server) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	settings, err := req.Settings.Normalize()
	if err != nil {
		badRequest(c, err)
		return
	}

	draft, err := s.engine.Generate(c.Request.Context(), req.ContactID, settings, req.Draft)
	if err != nil {
		// the draft is returned untouched so the client can keep editing
		c.AbortWithStatusJSON(statusOf(err), gin.H{
			"error":       err.Error(),
			"recoverable": outreach.IsRecoverable(err),
			"draft":       draft,
		})
		return
	}
	c.JSON(http.StatusOK, draft)
}

func (s *Server) send(c *gin.Context) {
	var d outreach.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		badRequest(c, err)
		return
	}
	if d.Assist != nil {
		settings, err := d.Assist.Normalize()
		if err != nil {
			badRequest(c, err)
			return
		}
		d.Assist = &settings
	}

	out, err := s.engine.Send(c.Request.Context(), d)
	s.respondOutcome(c, out, err)
}

func (s *Server) followUp(c *gin.Context) {
	var req followUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	out, err := s.engine.FollowUp(c.Request.Context(), req.ContactID, req.Draft)
	s.respondOutcome(c, out, err)
}

func (s *Server) respondOutcome(c *gin.Context, out *outreach.Outcome, err error) {
	if err != nil {
		resp := gin.H{
			"error":       err.Error(),
			"recoverable": outreach.IsRecoverable(err),
		}
		if out != nil {
			resp["outcome"] = out
		}
		c.AbortWithStatusJSON(statusOf(err), resp)
		return
	}

	resp := outcomeResponse{Outcome: out}
	if out.Warning != nil {
		resp.Warning = out.Warning.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// selectView switches the session's selected contact and loads its thread.
// A response that arrives after a newer selection is discarded.
func (s *Server) selectView(c *gin.Context) {
	sid := strings.TrimSpace(c.GetHeader(sessionHeader))
	if sid == "" {
		badRequest(c, errors.New(sessionHeader+" header is required"))
		return
	}

	contactID := c.Param("id")
	view := s.views.Get(sid)
	token := view.Begin(contactID)

	thread, err := s.engine.History(c.Request.Context(), contactID)
	if err != nil {
		abort(c, err)
		return
	}

	if !view.Deliver(token, thread) {
		c.AbortWithStatusJSON(http.StatusConflict, errorResponse{Error: "selection was superseded"})
		return
	}
	c.JSON(http.StatusOK, viewResponse{ContactID: contactID, Thread: &thread, Ready: true})
}

func (s *Server) currentView(c *gin.Context) {
	sid := strings.TrimSpace(c.GetHeader(sessionHeader))
	if sid == "" {
		badRequest(c, errors.New(sessionHeader+" header is required"))
		return
	}

	key, thread, ok := s.views.Get(sid).Current()
	if key == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: "no contact selected"})
		return
	}

	resp := viewResponse{ContactID: key, Ready: ok}
	if ok {
		resp.Thread = &thread
	}
	c.JSON(http.StatusOK, resp)
}
