package mqtt

import "fmt"

const (
	kindSay    = "say"
	kindOnline = "online"
)

func TopicTerminalSay(prefix string) string {
	return fmt.Sprintf("%s/terminal/+/%s", prefix, kindSay)
}

func TopicTerminalOnline(prefix string) string {
	return fmt.Sprintf("%s/terminal/+/%s", prefix, kindOnline)
}

func TopicPlan(prefix, terminalID, requestID string) string {
	return fmt.Sprintf("%s/terminal/%s/plan/%s", prefix, terminalID, requestID)
}
