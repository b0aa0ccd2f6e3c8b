package usecase

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salvage-market/model"
)

func TestAssignAgentIsIdempotentPerPair(t *testing.T) {
	h := newHarness(t)
	h.registerAgent("agent-1")
	h.registerAgent("agent-2")
	l := h.createListing("seller", "10", 7)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := h.agents.StartNegotiation(h.ctx, user("buyer"), l.ID)
			if assert.NoError(t, err) {
				ids[i] = a.ID
			}
		}()
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	again, err := h.agents.AssignAgent(h.ctx, l.ID, "buyer", model.AssignmentBuy)
	require.NoError(t, err)
	assert.Equal(t, ids[0], again.ID)
}

func TestAssignAgentSpreadsLoad(t *testing.T) {
	h := newHarness(t)
	a1 := h.registerAgent("agent-1")
	a2 := h.registerAgent("agent-2")

	_, first, err := h.listings.CreateListing(h.ctx, user("seller"), listingInput("10", 7))
	require.NoError(t, err)
	_, second, err := h.listings.CreateListing(h.ctx, user("seller"), listingInput("10", 7))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a1.ID, a2.ID}, []string{first.AgentID, second.AgentID})
}

func TestAssignAgentWithoutAgents(t *testing.T) {
	h := newHarness(t)
	l := h.createListing("seller", "10", 7)
	_, err := h.agents.AssignAgent(h.ctx, l.ID, "buyer", model.AssignmentBuy)
	assert.ErrorIs(t, err, model.ErrInvalidState)
}

func TestStartNegotiationOnOwnListing(t *testing.T) {
	h := newHarness(t)
	h.registerAgent("agent-1")
	l := h.createListing("seller", "10", 7)
	_, err := h.agents.StartNegotiation(h.ctx, user("seller"), l.ID)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestConversation(t *testing.T) {
	h := newHarness(t)
	h.registerAgent("agent-1")
	_, sell, err := h.listings.CreateListing(h.ctx, user("seller"), listingInput("10", 7))
	require.NoError(t, err)
	require.NotNil(t, sell)

	_, err = h.agents.SendMessage(h.ctx, user("stranger"), sell.ID, "hi", "")
	require.ErrorIs(t, err, model.ErrAuthorization)

	_, err = h.agents.SendMessage(h.ctx, user("seller"), sell.ID, "   ", model.MessageText)
	require.ErrorIs(t, err, model.ErrValidation)

	fromClient, err := h.agents.SendMessage(h.ctx, user("seller"), sell.ID, "When can you inspect?", "")
	require.NoError(t, err)
	assert.False(t, fromClient.FromAgent)
	assert.Equal(t, model.MessageText, fromClient.Type)

	for _, body := range []string{"Tomorrow 10am", "Bring the invoices"} {
		m, err := h.agents.SendMessage(h.ctx, user("agent-1"), sell.ID, body, model.MessageText)
		require.NoError(t, err)
		assert.True(t, m.FromAgent)
	}

	client, err := h.agents.ListAssignments(h.ctx, user("seller"))
	require.NoError(t, err)
	require.Len(t, client, 1)
	assert.Equal(t, 2, client[0].UnreadCount)
	agent, err := h.agents.ListAssignments(h.ctx, user("agent-1"))
	require.NoError(t, err)
	require.Len(t, agent, 1)
	assert.Equal(t, 1, agent[0].UnreadCount)

	n, err := h.agents.MarkRead(h.ctx, user("seller"), sell.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = h.agents.MarkRead(h.ctx, user("seller"), sell.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	msgs, err := h.agents.ListMessages(h.ctx, user("agent-1"), sell.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "When can you inspect?", msgs[0].Body)

	_, err = h.agents.ListMessages(h.ctx, user("stranger"), sell.ID)
	assert.ErrorIs(t, err, model.ErrAuthorization)
	_, err = h.agents.ListMessages(h.ctx, operator, sell.ID)
	assert.NoError(t, err)
}

func TestSendMessageAfterCompletion(t *testing.T) {
	h := newHarness(t)
	h.registerAgent("agent-1")
	_, sell, err := h.listings.CreateListing(h.ctx, user("seller"), listingInput("10", 7))
	require.NoError(t, err)

	done, err := h.agents.CompleteAssignment(h.ctx, sell.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentCompleted, done.Status)

	cancelled, err := h.agents.CancelAssignment(h.ctx, sell.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentCompleted, cancelled.Status, "terminal assignments are left alone")

	_, err = h.agents.SendMessage(h.ctx, user("seller"), sell.ID, "still there?", "")
	assert.ErrorIs(t, err, model.ErrInvalidState)
}

func TestCloseAssignmentRequiresOperator(t *testing.T) {
	h := newHarness(t)
	h.registerAgent("agent-1")
	_, sell, err := h.listings.CreateListing(h.ctx, user("seller"), listingInput("10", 7))
	require.NoError(t, err)

	_, err = h.agents.CloseAssignment(h.ctx, user("seller"), sell.ID, model.AssignmentCancelled)
	require.ErrorIs(t, err, model.ErrAuthorization)
	_, err = h.agents.CloseAssignment(h.ctx, operator, sell.ID, model.AssignmentActive)
	require.ErrorIs(t, err, model.ErrValidation)
	got, err := h.agents.CloseAssignment(h.ctx, operator, sell.ID, model.AssignmentCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentCancelled, got.Status)

	_, err = h.agents.CompleteAssignment(h.ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRegisterAgent(t *testing.T) {
	h := newHarness(t)
	_, err := h.agents.RegisterAgent(h.ctx, user("someone"), "Sam", "sam@agents.test", "sam")
	require.ErrorIs(t, err, model.ErrAuthorization)

	_, err = h.agents.RegisterAgent(h.ctx, operator, "", "not-an-email", "")
	require.ErrorIs(t, err, model.ErrValidation)
	assert.ElementsMatch(t, []string{"name", "user_id", "email"}, fieldsOf(t, err))

	first, err := h.agents.RegisterAgent(h.ctx, operator, "Sam", "Sam@Agents.test", "sam")
	require.NoError(t, err)
	second, err := h.agents.RegisterAgent(h.ctx, operator, "Samuel", "sam@agents.test", "sam")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	all, err := h.agents.ListAgents(h.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAssignAgentSkipsClientsOwnAgent(t *testing.T) {
	h := newHarness(t)
	h.registerAgent("seller")

	l, assignment, err := h.listings.CreateListing(h.ctx, user("seller"), listingInput("300", 7))
	require.NoError(t, err)
	assert.Nil(t, assignment, "the only agent is the seller")
	_, err = h.agents.AssignAgent(h.ctx, l.ID, "seller", model.AssignmentSell)
	require.ErrorIs(t, err, model.ErrInvalidState)
	assert.ErrorContains(t, err, "no sales agent is available")

	other := h.registerAgent("agent-2")
	res, err := h.listings.SweepExpirations(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.AgentsAssigned)

	mine, err := h.agents.ListAssignments(h.ctx, user("seller"))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, other.ID, mine[0].AgentID)

	// The seller acting as an agent can still be assigned to buyers.
	buy, err := h.agents.StartNegotiation(h.ctx, user("buyer"), l.ID)
	require.NoError(t, err)
	assert.Equal(t, "buyer", buy.ClientID)

	msg, err := h.agents.SendMessage(h.ctx, user("agent-2"), mine[0].ID, "Photos look good", model.MessageText)
	require.NoError(t, err)
	assert.True(t, msg.FromAgent)
}
