package classify

import (
	"fmt"
	"strings"
)

const systemPrompt = `You classify organizations by their primary industry ` +
	`based on website content. You answer with a single word and nothing else.`

// classificationPrompt asks the model for a bare Yes/No verdict. The
// inclusion and exclusion lists keep adjacent financial sectors from
// bleeding into the insurance bucket.
const classificationPrompt = `Based on the following website content, determine whether "%s" is an insurance company.

Insurance companies include: insurance carriers, reinsurers, life insurers, health insurers, property and casualty insurers, insurance brokers and agencies, underwriters, and insurtech companies whose core product is insurance.

Do NOT count as insurance: banks, asset managers, investment funds, pension administrators, consulting firms, law firms, healthcare providers, hospitals, or companies that merely offer insurance as a side service.

Website content:
%s

Is "%s" an insurance company? Respond with ONLY Yes or No.`

// strictReask is sent when the first answer could not be parsed.
const strictReask = `Your previous answer could not be understood. ` +
	`Answer with exactly one word: Yes or No.`

func buildPrompt(orgName, excerpt string) string {
	return fmt.Sprintf(classificationPrompt, orgName, strings.TrimSpace(excerpt), orgName)
}
