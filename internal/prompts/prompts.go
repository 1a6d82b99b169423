package prompts

// ============================================================================
// Query Expansion Prompts (LLM)
// ============================================================================

// QueryExpansionSystemPrompt pins the role and the output contract: a plain
// JSON array of exactly 12 keyword queries in the 4+2+6 structure.
const QueryExpansionSystemPrompt = `You are an expert growth marketer helping brands find influencer partners. Generate exactly 12 keyword-based search queries following the 4+2+6 structure (4 broad, 2 specific, 6 adjacent). Always respond with a plain JSON array of strings.`

// QueryExpansionPromptTemplate is the user prompt for query generation.
// The single %s placeholder receives the business description.
//
// The 4+2+6 breakdown:
//   - 4 broad queries: individual concepts, widest net
//   - 2 specific queries: location + niche combinations
//   - 6 adjacent queries: nearby locations and related creator types
const QueryExpansionPromptTemplate = `Based on this influencer description, generate EXACTLY 12 simple, keyword-based search queries for an INFLUENCER SEARCH ENGINE.

Description: %s

CRITICAL Requirements:
- These queries will search influencer BIOS and POSTS
- ONLY use words that would actually appear in an influencer's bio or content
- Use terms influencers use to describe THEMSELVES (not how others describe them)
- Keep queries SHORT (2-4 words max)
- Use simple keywords only
- Don't use full sentences or third-person descriptions
- Format: one query per line
- Generate EXACTLY 12 queries total

QUERY BREAKDOWN (MUST FOLLOW):
- 4 BROAD queries (individual concepts, single words or simple 2-word terms)
- 2 SPECIFIC queries (location + niche combinations)
- 6 ADJACENT queries (related influencer types with valuable audiences)

NEVER USE BUSINESS/ENTITY TYPES:
- DON'T: "coffee shop", "restaurant", "gym", "studio", "store", "cafe", "venue"
- DO: "coffee lover", "foodie", "fitness coach", "photographer", "content creator"
- Remember: Influencers are PEOPLE, not businesses
- Use words that describe what they DO or are interested in, not places/businesses

Wrong vs Right Examples:
WRONG "san francisco coffee shop" -> RIGHT "sf coffee lover" or "sf barista"
WRONG "la restaurant" -> RIGHT "la foodie" or "la food blogger"
WRONG "nyc gym" -> RIGHT "nyc fitness" or "nyc personal trainer"
WRONG "miami beach club" -> RIGHT "miami nightlife" or "miami lifestyle"

STRUCTURE - Generate queries in this order:

PART 1 - BROAD QUERIES (4 total):
- Extract main concepts separately (location, niche, related terms)
- Single words or simple 2-word terms
- Cast the widest net

PART 2 - SPECIFIC QUERIES (2 total):
- Combine location + niche
- Use location abbreviations when relevant

PART 3 - ADJACENT QUERIES (6 total):
- SINGLE WORDS/TERMS - Mix of adjacent locations AND related influencer types
- Include ADJACENT LOCATIONS (2-3 queries): nearby areas, regions, or related cities
  * San Francisco -> "bay area", "oakland", "berkeley"
  * Los Angeles -> "socal", "orange county", "hollywood"
  * New York -> "nyc", "brooklyn", "manhattan"
  * Miami -> "south florida", "fort lauderdale", "brickell"
- Include ADJACENT INFLUENCER TYPES (3-4 queries): related categories with valuable audiences
  * For food/restaurant -> "lifestyle", "blogger", "creator", "local", "guide"
  * For fitness/gym -> "wellness", "lifestyle", "motivational", "coach", "athlete"
  * For fashion/clothing -> "lifestyle", "style", "beauty", "blogger", "creator"
  * For travel/hotel -> "adventure", "lifestyle", "explorer", "creator", "vlogger"
- These should be SIMPLE single-word terms or 2-word location names

Example for "San Francisco coffee shop" (12 queries):
BROAD (4):
san francisco
coffee
foodie
food

SPECIFIC (2):
sf coffee
bay area coffee

ADJACENT (6):
bay area
oakland
berkeley
lifestyle
blogger
creator

Example for "LA gym" (12 queries):
BROAD (4):
los angeles
fitness
health
workout

SPECIFIC (2):
la fitness
la workout

ADJACENT (6):
socal
orange county
hollywood
wellness
lifestyle
coach

Now generate EXACTLY 12 queries following the structure above (4 broad + 2 specific + 6 adjacent):`

// ============================================================================
// Profile Fit Prompts (LLM)
// ============================================================================

// ProfileFitPromptHeader opens the fit-scoring prompt. The %s placeholder
// receives the platform name.
const ProfileFitPromptHeader = `Evaluate this %s profile for partnership suitability.`

// ProfileFitBusinessContextLabel introduces the business description block.
const ProfileFitBusinessContextLabel = `Business context (user query):`

// ProfileFitProfileLabel introduces the profile summary block.
const ProfileFitProfileLabel = `Profile summary:`

// ProfileFitPostsLabel introduces the recent posts block.
const ProfileFitPostsLabel = `Recent posts (caption and media):`

// ProfileFitSchemaInstruction pins the response format: a bare JSON object
// with an integer score in [1,10] and a free-text rationale.
const ProfileFitSchemaInstruction = `Return ONLY a strict JSON object with the following schema, no extra text:
{"score": <integer 1-10>, "rationale": <string>}`
