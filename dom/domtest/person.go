package domtest

// PersonRaw is the first version of the person schema.
const PersonRaw = `{name:'person' models:[
	{name:'Group' elems:[
		{name:'ID'   typ:'int' bits:2}
		{name:'Name' typ:'str'}
	]}
	{name:'Person' elems:[
		{name:'ID'     typ:'int' bits:2}
		{name:'Name'   typ:'str'}
		{name:'Family' typ:'int' ref:'Group' rel:'members'}
	]}
	{name:'Member' elems:[
		{name:'ID'     typ:'int' bits:2}
		{name:'Person' typ:'int' ref:'Person' rel:'memberships'}
		{name:'Group'  typ:'int' ref:'Group' rel:'roster'}
		{name:'Joined' typ:'time'}
	]}
]}`

// PersonV2Raw renames Group to Team and Person.Name to FullName, drops Member.Joined
// and adds the Note model.
const PersonV2Raw = `{name:'person' vers:2 models:[
	{name:'Team' elems:[
		{name:'ID'   typ:'int' bits:2}
		{name:'Name' typ:'str'}
	]}
	{name:'Person' elems:[
		{name:'ID'       typ:'int' bits:2}
		{name:'FullName' typ:'str'}
		{name:'Family'   typ:'int' ref:'Team' rel:'members'}
	]}
	{name:'Member' elems:[
		{name:'ID'     typ:'int' bits:2}
		{name:'Person' typ:'int' ref:'Person' rel:'memberships'}
		{name:'Group'  typ:'int' ref:'Team' rel:'roster'}
	]}
	{name:'Note' elems:[
		{name:'ID'   typ:'int' bits:2}
		{name:'Text' typ:'str'}
	]}
]}`

const PersonFixRaw = `{
	group:[
		{id:1 name:'Schnabels'}
		{id:2 name:'Starkeys'}
		{id:3 name:'Beatles'}
		{id:4 name:'Gophers'}
	]
	person:[
		{id:1 name:'Martin' family:1}
		{id:2 name:'Ringo'  family:2}
		{id:3 name:'Rob'}
	]
	member:[
		{id:1 person:1 group:1 joined:'1983-11-07'}
		{id:2 person:2 group:2 joined:'1940-07-07'}
		{id:3 person:2 group:3 joined:'1962-08-01'}
		{id:4 person:1 group:4 joined:'2012-02-20'}
		{id:5 person:3 group:4 joined:'2009-10-10'}
	]
}`

func PersonFixture() (*Fixture, error)   { return New(PersonRaw, PersonFixRaw) }
func PersonV2Fixture() (*Fixture, error) { return New(PersonV2Raw, "") }
