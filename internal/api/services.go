package api

// Service accessors group Client methods by resource.
// Each service embeds *Client to avoid breaking existing call sites.

type AgentsService struct{ *Client }

type CannedMessagesService struct{ *Client }

type ConversationsService struct{ *Client }

type CustomersService struct{ *Client }

type ExternalService struct{ *Client }

type MessagesService struct{ *Client }

type SearchService struct{ *Client }

func (c *Client) Agents() AgentsService {
	return AgentsService{c}
}

func (c *Client) CannedMessages() CannedMessagesService {
	return CannedMessagesService{c}
}

func (c *Client) Conversations() ConversationsService {
	return ConversationsService{c}
}

func (c *Client) Customers() CustomersService {
	return CustomersService{c}
}

func (c *Client) External() ExternalService {
	return ExternalService{c}
}

func (c *Client) Messages() MessagesService {
	return MessagesService{c}
}

func (c *Client) Search() SearchService {
	return SearchService{c}
}
