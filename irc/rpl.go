package irc

// IRC replies handled by the dispatcher.
const (
	rplWelcome  = "001" // <nick> :Welcome message
	rplMyinfo   = "004" // <nick> <servername> <version> <umodes> <chan modes> [<chan modes with a parameter>]
	rplIsupport = "005" // <nick> 1*13<TOKEN[=value]> :are supported by this server

	rplUmodeis = "221" // <nick> <modes>

	rplAway          = "301" // <nick> <nick> :<away message>
	rplUnaway        = "305" // <nick> :You are no longer marked as being away
	rplNowaway       = "306" // <nick> :You have been marked as being away
	rplEndofwho      = "315" // <nick> <name> :End of WHO list
	rplChannelmodeis = "324" // <nick> <channel> <modes> <mode params>
	rplCreationTime  = "329" // <nick> <channel> <creationtime>
	rplNotopic       = "331" // <nick> <channel> :No topic set
	rplTopic         = "332" // <nick> <channel> :<topic>
	rplTopicwhotime  = "333" // <nick> <channel> <who> <setat>
	rplWhoreply      = "352" // <nick> <channel> <user> <host> <server> <nick> <H|G>[*][@|+] :<hopcount> <realname>
	rplNamreply      = "353" // <nick> <=/*/@> <channel> :1*([@/+]<name>)
	rplEndofnames    = "366" // <nick> <channel> :End of names list

	errNicknameinuse = "433" // <nick> <nick> :Nickname in use
)
